package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/otcheredev/roadservice-api/internal/cache"
	"github.com/otcheredev/roadservice-api/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })
	return NewStore(mc, time.Hour)
}

var alice = models.Identity{Email: "alice@acme.com", UserID: "u-alice", CompanyID: "c-1", Role: models.RoleWorker}

func TestCreateExchange(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	token, err := s.Create(ctx, alice)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(token, alice.UserID+".") {
		t.Fatalf("unexpected token format %q", token)
	}

	got, err := s.Exchange(ctx, token)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if got != alice {
		t.Fatalf("identity mismatch %+v", got)
	}

	if _, err := s.Exchange(ctx, token); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("reused token should fail, got %v", err)
	}
}

func TestExchangeRejectsTamperedSecret(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	token, _ := s.Create(ctx, alice)
	tampered := token[:strings.LastIndex(token, ".")+1] + "forged"
	if _, err := s.Exchange(ctx, tampered); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected ErrInvalidRefresh, got %v", err)
	}
	for _, bad := range []string{"", "a.b", "a..c", "u:*.x.y"} {
		if _, err := s.Exchange(ctx, bad); !errors.Is(err, ErrInvalidRefresh) {
			t.Fatalf("%q: expected ErrInvalidRefresh, got %v", bad, err)
		}
	}
}

func TestRevokeUser(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	t1, _ := s.Create(ctx, alice)
	t2, _ := s.Create(ctx, alice)
	bob := alice
	bob.UserID = "u-bob"
	t3, _ := s.Create(ctx, bob)

	if err := s.RevokeUser(ctx, alice.UserID); err != nil {
		t.Fatalf("RevokeUser: %v", err)
	}
	for _, tok := range []string{t1, t2} {
		if _, err := s.Exchange(ctx, tok); !errors.Is(err, ErrInvalidRefresh) {
			t.Fatalf("revoked session still valid: %v", err)
		}
	}
	if _, err := s.Exchange(ctx, t3); err != nil {
		t.Fatalf("other user's session revoked: %v", err)
	}
}

func TestRevoke(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	token, _ := s.Create(ctx, alice)
	if err := s.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := s.Exchange(ctx, token); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected ErrInvalidRefresh, got %v", err)
	}
}
