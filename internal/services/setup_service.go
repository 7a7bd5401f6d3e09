package services

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/repository"
	"github.com/rs/zerolog/log"
)

const systemCompanyName = "Sistema RoadService"

// SetupService bootstraps the first super admin
type SetupService struct {
	companies *repository.CompanyRepository
	users     *repository.UserRepository
	audit     *AuditTrail
	token     string
}

func NewSetupService(companies *repository.CompanyRepository, users *repository.UserRepository, audit *AuditTrail, setupToken string) *SetupService {
	return &SetupService{companies: companies, users: users, audit: audit, token: setupToken}
}

// SetupRequest initialises the system
type SetupRequest struct {
	SetupToken string `json:"setup_token"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
}

// SetupStatus reports whether a super admin exists
type SetupStatus struct {
	Initialized      bool `json:"is_initialized"`
	SuperAdminsCount int  `json:"super_admins_count"`
}

func (s *SetupService) Status(ctx context.Context) (*SetupStatus, error) {
	n, err := s.users.CountByRole(ctx, models.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	return &SetupStatus{Initialized: n > 0, SuperAdminsCount: n}, nil
}

// Initialize creates the system company and its super admin. It refuses
// once any super admin exists and when no setup token is configured.
func (s *SetupService) Initialize(ctx context.Context, req SetupRequest) (*models.User, error) {
	if s.token == "" || subtle.ConstantTimeCompare([]byte(req.SetupToken), []byte(s.token)) != 1 {
		return nil, apperr.Authorization("Invalid setup token")
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Super Administrador"
	}

	// The super admin check and the inserts are separate round trips. A
	// unique constraint on the system company name, if the store has one,
	// turns a lost race into a conflict; otherwise two concurrent calls with
	// different emails can both create a super admin.
	status, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	if status.Initialized {
		return nil, apperr.Conflict("System already initialized")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	company, err := s.companies.Create(ctx, &models.Company{
		ID:        uuid.NewString(),
		Name:      systemCompanyName,
		Status:    models.CompanyActive,
		CreatedAt: now,
		UpdatedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		CompanyID:    company.ID,
		Role:         models.RoleSuperAdmin,
		Status:       models.UserActive,
		PasswordHash: hash,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Str("company_id", company.ID).Msg("System initialized")
	s.audit.Record(ctx, AuditEntry{Actor: user.Identity(), Action: "system.initialize", ResourceType: "company", ResourceID: company.ID})
	pub := user.Public()
	return &pub, nil
}
