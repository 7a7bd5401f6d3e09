package tenancy

import (
	"context"
	"errors"
	"testing"

	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/store"
	"github.com/otcheredev/roadservice-api/internal/store/storetest"
)

var (
	adminA = models.Identity{Email: "a@a.com", UserID: "ua", CompanyID: "A", Role: models.RoleCompanyAdmin}
	worker = models.Identity{Email: "w@a.com", UserID: "uw", CompanyID: "A", Role: models.RoleWorker}
	super  = models.Identity{Email: "root@sys.com", UserID: "us", CompanyID: "SYS", Role: models.RoleSuperAdmin}
)

func TestFilters(t *testing.T) {
	if f := Filters(adminA); len(f) != 1 || f[0] != (Filter{Column: "company_id", Value: "A"}) {
		t.Fatalf("unexpected admin filters %+v", f)
	}
	if f := Filters(worker); len(f) != 1 || f[0].Value != "A" {
		t.Fatalf("unexpected worker filters %+v", f)
	}
	if f := Filters(super); len(f) != 0 {
		t.Fatalf("super admin should have global scope, got %+v", f)
	}
}

func TestAuthorizeTenant(t *testing.T) {
	if err := AuthorizeTenant(adminA, "A"); err != nil {
		t.Fatalf("own tenant rejected: %v", err)
	}
	if err := AuthorizeTenant(adminA, "B"); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("expected authorization failure, got %v", err)
	}
	if err := AuthorizeTenant(adminA, ""); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("expected authorization failure for empty tenant, got %v", err)
	}
	if err := AuthorizeTenant(super, "B"); err != nil {
		t.Fatalf("super admin rejected: %v", err)
	}
}

func seeded(t *testing.T) (*storetest.Server, *store.Client) {
	t.Helper()
	srv := storetest.NewServer("key")
	t.Cleanup(srv.Close)
	srv.Seed("users",
		storetest.Row{"id": "1", "company_id": "A"},
		storetest.Row{"id": "2", "company_id": "B"},
		storetest.Row{"id": "3", "company_id": "A"},
		storetest.Row{"id": "4", "company_id": "C"},
	)
	return srv, store.NewClient(srv.URL, "key")
}

func TestTenantIsolation(t *testing.T) {
	_, c := seeded(t)

	res, err := Apply(c.From("users"), adminA).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rows, err := store.Rows[struct {
		ID        string `json:"id"`
		CompanyID string `json:"company_id"`
	}](res)
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.CompanyID != "A" {
			t.Fatalf("leaked row from tenant %s", r.CompanyID)
		}
	}

	res, err = Apply(c.From("users"), super).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	all, _ := store.Rows[struct{}](res)
	if len(all) != 4 {
		t.Fatalf("super admin should see all rows, got %d", len(all))
	}
}

func TestLookup(t *testing.T) {
	_, c := seeded(t)
	ctx := context.Background()

	type rec struct {
		ID string `json:"id"`
	}
	if _, err := Lookup[rec](ctx, c.From("users"), "2", adminA, "User not found"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("foreign record should be invisible, got %v", err)
	}
	if _, err := Lookup[rec](ctx, c.From("users"), "2", super, "User not found"); err != nil {
		t.Fatalf("super admin: %v", err)
	}

	row, err := Lookup[struct {
		CompanyID string `json:"company_id"`
	}](ctx, c.From("users"), "3", adminA, "User not found")
	if err != nil || row.CompanyID != "A" {
		t.Fatalf("Lookup = %+v, %v", row, err)
	}
}
