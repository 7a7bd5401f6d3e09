package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/models"
)

func workerInvite(company string) models.InvitationRequest {
	return models.InvitationRequest{Email: "worker@x.com", Name: "Worker", Role: models.RoleWorker, CompanyID: company}
}

func registration(company string) models.Registration {
	return models.Registration{Email: "worker@x.com", Name: "Worker", Password: "correct-horse", Role: models.RoleWorker, CompanyID: company}
}

func TestIssueCreatesPendingInvitation(t *testing.T) {
	f := newFixture(t)

	inv, err := f.invitations.Issue(context.Background(), adminA, workerInvite(""))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if inv.Status != models.InvitationPending || inv.CompanyID != tenantA {
		t.Fatalf("unexpected invitation %+v", inv)
	}
	if want := f.now.Add(DefaultInvitationTTL); !inv.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", inv.ExpiresAt, want)
	}
}

func TestIssueRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "existing", "taken@x.com", tenantA, models.RoleWorker, "password123")

	worker := models.Identity{UserID: "w", CompanyID: tenantA, Role: models.RoleWorker}

	tests := []struct {
		name  string
		actor models.Identity
		req   models.InvitationRequest
		kind  error
	}{
		{"worker cannot invite", worker, workerInvite(tenantA), apperr.ErrAuthorization},
		{"other tenant", adminA, workerInvite(tenantB), apperr.ErrAuthorization},
		{"role above actor", adminA, models.InvitationRequest{Email: "x@x.com", Name: "X", Role: models.RoleSuperAdmin}, apperr.ErrAuthorization},
		{"invalid role", adminA, models.InvitationRequest{Email: "x@x.com", Name: "X", Role: "owner"}, apperr.ErrValidation},
		{"bad email", adminA, models.InvitationRequest{Email: "nope", Name: "X", Role: models.RoleWorker}, apperr.ErrValidation},
		{"existing user", adminA, models.InvitationRequest{Email: "taken@x.com", Name: "X", Role: models.RoleWorker}, apperr.ErrConflict},
		{"unknown company", root, models.InvitationRequest{Email: "x@x.com", Name: "X", Role: models.RoleWorker, CompanyID: "ghost"}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.srv.ResetRequests()
			_, err := f.invitations.Issue(ctx, tt.actor, tt.req)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("got %v, want kind %v", err, tt.kind)
			}
			for _, r := range f.srv.Requests() {
				if r.Method != "GET" {
					t.Fatalf("rejected issue performed a %s", r.Method)
				}
			}
		})
	}

	if rows := f.srv.Rows("user_invitations"); len(rows) != 0 {
		t.Fatalf("expected no invitations, got %d", len(rows))
	}
}

func TestIssueDuplicatePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.invitations.Issue(ctx, adminA, workerInvite("")); err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	if _, err := f.invitations.Issue(ctx, adminA, workerInvite("")); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAcceptLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.invitations.Issue(ctx, adminA, workerInvite(""))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Wrong tenant: rejected with no transition
	if _, err := f.invitations.Accept(ctx, registration(tenantB)); !errors.Is(err, ErrInvitationMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	row, _ := f.srv.Find("user_invitations", "id", inv.ID)
	if row["status"] != string(models.InvitationPending) {
		t.Fatalf("mismatch changed status to %v", row["status"])
	}
	if len(f.srv.Rows("users")) != 0 {
		t.Fatal("mismatch created a user")
	}

	user, err := f.invitations.Accept(ctx, registration(tenantA))
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if user.CompanyID != tenantA || user.Role != models.RoleWorker {
		t.Fatalf("unexpected user %+v", user)
	}

	row, _ = f.srv.Find("user_invitations", "id", inv.ID)
	if row["status"] != string(models.InvitationAccepted) || row["user_id"] != user.ID {
		t.Fatalf("invitation not accepted: %+v", row)
	}
	if row["accepted_at"] == nil {
		t.Fatal("accepted_at not stamped")
	}

	// Second accept: no longer pending
	if _, err := f.invitations.Accept(ctx, registration(tenantA)); !errors.Is(err, ErrNoInvitation) {
		t.Fatalf("expected second accept to fail, got %v", err)
	}
	if n := len(f.srv.Rows("users")); n != 1 {
		t.Fatalf("expected exactly one user, got %d", n)
	}
}

func TestAcceptExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.invitations.Issue(ctx, adminA, workerInvite(""))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	f.now = f.now.Add(DefaultInvitationTTL + time.Second)
	if _, err := f.invitations.Accept(ctx, registration(tenantA)); !errors.Is(err, ErrInvitationExpired) {
		t.Fatalf("expected expiry error, got %v", err)
	}

	row, _ := f.srv.Find("user_invitations", "id", inv.ID)
	if row["status"] != string(models.InvitationExpired) {
		t.Fatalf("status = %v, want expired", row["status"])
	}
	if len(f.srv.Rows("users")) != 0 {
		t.Fatal("expired invitation created a user")
	}
}

func TestAcceptAtDeadlineSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.invitations.Issue(ctx, adminA, workerInvite("")); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	f.now = f.now.Add(DefaultInvitationTTL)
	if _, err := f.invitations.Accept(ctx, registration(tenantA)); err != nil {
		t.Fatalf("accept at expires_at should succeed: %v", err)
	}
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.invitations.Issue(ctx, adminA, workerInvite(""))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const n = 4
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.invitations.Accept(ctx, registration(tenantA))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful accept, got %d", wins)
	}
	if n := len(f.srv.Rows("users")); n != 1 {
		t.Fatalf("expected one user, got %d", n)
	}
	row, _ := f.srv.Find("user_invitations", "id", inv.ID)
	if row["status"] != string(models.InvitationAccepted) {
		t.Fatalf("status = %v, want accepted", row["status"])
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.invitations.Issue(ctx, adminA, workerInvite(""))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := f.invitations.Cancel(ctx, adminB, inv.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("foreign admin should not see invitation, got %v", err)
	}
	if err := f.invitations.Cancel(ctx, adminA, inv.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := f.invitations.Cancel(ctx, adminA, inv.ID); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}

	row, _ := f.srv.Find("user_invitations", "id", inv.ID)
	if row["status"] != string(models.InvitationCancelled) || row["cancelled_by"] != adminA.UserID {
		t.Fatalf("unexpected row %+v", row)
	}
	if _, err := f.invitations.Accept(ctx, registration(tenantA)); !errors.Is(err, ErrNoInvitation) {
		t.Fatalf("cancelled invitation accepted: %v", err)
	}
}

func TestListIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.invitations.Issue(ctx, adminA, workerInvite("")); err != nil {
		t.Fatalf("Issue A: %v", err)
	}
	other := workerInvite("")
	other.Email = "other@y.com"
	if _, err := f.invitations.Issue(ctx, adminB, other); err != nil {
		t.Fatalf("Issue B: %v", err)
	}

	list, err := f.invitations.List(ctx, adminA, "", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].CompanyID != tenantA {
		t.Fatalf("unexpected list %+v", list)
	}

	all, err := f.invitations.List(ctx, root, models.InvitationPending, 0, 0)
	if err != nil {
		t.Fatalf("List root: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("super admin should see 2 invitations, got %d", len(all))
	}

	if _, err := f.invitations.List(ctx, adminA, "bogus", 0, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
