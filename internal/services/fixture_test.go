package services

import (
	"testing"
	"time"

	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/cache"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/repository"
	"github.com/otcheredev/roadservice-api/internal/session"
	"github.com/otcheredev/roadservice-api/internal/store"
	"github.com/otcheredev/roadservice-api/internal/store/storetest"
)

const (
	testKey    = "service-key"
	testSecret = "0123456789abcdef0123456789abcdef"
)

var (
	tenantA = "company-a"
	tenantB = "company-b"

	adminA = models.Identity{Email: "admin@a.com", UserID: "admin-a", CompanyID: tenantA, Name: "Admin A", Role: models.RoleCompanyAdmin}
	adminB = models.Identity{Email: "admin@b.com", UserID: "admin-b", CompanyID: tenantB, Name: "Admin B", Role: models.RoleCompanyAdmin}
	root   = models.Identity{Email: "root@sys.com", UserID: "root", CompanyID: "sys", Name: "Root", Role: models.RoleSuperAdmin}
)

type fixture struct {
	srv         *storetest.Server
	users       *repository.UserRepository
	companies   *repository.CompanyRepository
	sessions    *session.Store
	tokens      *auth.TokenService
	invitations *InvitationService
	auth        *AuthService
	userSvc     *UserService
	companySvc  *CompanyService
	setup       *SetupService
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := storetest.NewServer(testKey)
	t.Cleanup(srv.Close)
	srv.Unique("users", "email")
	srv.Unique("companies", "name")
	srv.Seed("companies",
		storetest.Row{"id": tenantA, "name": "Acme", "status": "active"},
		storetest.Row{"id": tenantB, "name": "Globex", "status": "active"},
	)

	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })

	tokens, err := auth.NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	client := store.NewClient(srv.URL, testKey)
	f := &fixture{
		srv:       srv,
		users:     repository.NewUserRepository(client, false),
		companies: repository.NewCompanyRepository(client, false),
		sessions:  session.NewStore(mc, time.Hour),
		tokens:    tokens,
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	invRepo := repository.NewInvitationRepository(client, false)
	audit := NewAuditTrail(nil)

	f.invitations = NewInvitationService(invRepo, f.users, f.companies, audit, nil, 0)
	f.invitations.now = func() time.Time { return f.now }
	f.auth = NewAuthService(f.users, tokens, f.sessions, f.invitations, audit)
	f.userSvc = NewUserService(f.users, f.sessions, audit, nil)
	f.companySvc = NewCompanyService(f.companies, f.users, audit)
	f.setup = NewSetupService(f.companies, f.users, audit, "setup-secret")
	return f
}

// seedUser stores an active account with password
func (f *fixture) seedUser(t *testing.T, id, email, company string, role models.Role, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	f.srv.Seed("users", storetest.Row{
		"id":              id,
		"email":           email,
		"name":            id,
		"company_id":      company,
		"role":            string(role),
		"status":          string(models.UserActive),
		"hashed_password": hash,
	})
}
