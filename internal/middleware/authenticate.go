package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/metrics"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/repository"
	"github.com/otcheredev/roadservice-api/internal/respond"
	"github.com/otcheredev/roadservice-api/internal/services"
	"github.com/otcheredev/roadservice-api/pkg/logger"
	"github.com/rs/zerolog"
)

// PublicPaths are served without a bearer token
var PublicPaths = []string{
	"/",
	"/health",
	"/ready",
	"/auth/login",
	"/auth/register",
	"/auth/refresh",
	"/setup/initialize",
	"/setup/status",
	"/metrics",
	"/ws",
}

// Authenticator verifies bearer tokens and, on the authoritative path,
// re-checks the token against the stored account.
type Authenticator struct {
	tokens *auth.TokenService
	users  *repository.UserRepository
	audit  *services.AuditTrail
	public map[string]struct{}
}

// NewAuthenticator creates an authenticator. users may be nil when only the
// fast path is used.
func NewAuthenticator(tokens *auth.TokenService, users *repository.UserRepository, audit *services.AuditTrail) *Authenticator {
	public := make(map[string]struct{}, len(PublicPaths))
	for _, p := range PublicPaths {
		public[p] = struct{}{}
	}
	return &Authenticator{tokens: tokens, users: users, audit: audit, public: public}
}

// IsPublic reports whether path bypasses authentication
func (a *Authenticator) IsPublic(path string) bool {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	_, ok := a.public[path]
	return ok
}

// Verify is the fast path. It checks the token signature and expiry and
// attaches the claimed identity without touching the store.
func (a *Authenticator) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || a.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := BearerToken(r)
		if !ok {
			metrics.AuthOutcome("verify", "missing")
			respond.Error(w, r, auth.ErrMissingToken)
			return
		}

		id, err := a.VerifyToken(raw)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", id.UserID).Str("company_id", id.CompanyID)
		})

		ctx := auth.ContextWithIdentity(r.Context(), id)
		ctx = auth.ContextWithToken(ctx, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// VerifyToken verifies raw and records the outcome
func (a *Authenticator) VerifyToken(raw string) (models.Identity, error) {
	id, err := a.tokens.Verify(raw)
	switch {
	case err == nil:
		metrics.AuthOutcome("verify", "ok")
	case errors.Is(err, auth.ErrExpiredToken):
		metrics.AuthOutcome("verify", "expired")
	case errors.Is(err, auth.ErrMalformedToken):
		metrics.AuthOutcome("verify", "malformed")
	default:
		metrics.AuthOutcome("verify", "invalid")
	}
	return id, err
}

// Revalidate is the authoritative path. It must run after Verify and
// replaces the claimed identity with the stored one, refusing deleted or
// inactive accounts and tokens whose tenant no longer matches.
func (a *Authenticator) Revalidate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claimed, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			respond.Error(w, r, auth.ErrMissingToken)
			return
		}

		user, err := a.users.FindByEmail(r.Context(), claimed.Email)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				metrics.AuthOutcome("revalidate", "user_not_found")
				respond.Error(w, r, auth.ErrUserNotFound)
				return
			}
			respond.Error(w, r, err)
			return
		}

		if user.Status != models.UserActive {
			metrics.AuthOutcome("revalidate", "inactive")
			respond.Error(w, r, auth.ErrAccountInactive)
			return
		}

		if user.CompanyID != claimed.CompanyID || user.ID != claimed.UserID {
			metrics.AuthOutcome("revalidate", "tenant_mismatch")
			logger.Security().Warn().
				Str("email", claimed.Email).
				Str("token_company_id", claimed.CompanyID).
				Str("stored_company_id", user.CompanyID).
				Str("path", r.URL.Path).
				Msg("Token tenant does not match stored account")
			a.audit.Record(r.Context(), services.AuditEntry{
				Actor:        claimed,
				CompanyID:    user.CompanyID,
				Action:       "auth.tenant_mismatch",
				ResourceType: "user",
				ResourceID:   user.ID,
				Failed:       true,
				Detail:       "token company " + claimed.CompanyID,
			})
			respond.Error(w, r, auth.ErrTokenTenantMismatch)
			return
		}

		metrics.AuthOutcome("revalidate", "ok")
		ctx := auth.ContextWithIdentity(r.Context(), user.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers below role
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				respond.Error(w, r, auth.ErrMissingToken)
				return
			}
			if !auth.AtLeast(id, role) {
				respond.Error(w, r, apperr.Authorization("Insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from the Authorization header
func BearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
