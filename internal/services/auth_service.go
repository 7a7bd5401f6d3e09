package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/repository"
	"github.com/otcheredev/roadservice-api/internal/session"
	"github.com/rs/zerolog/log"
)

// ErrInvalidCredentials is the single answer for unknown email, wrong
// password and wrong company
var ErrInvalidCredentials = apperr.Authentication("Invalid credentials")

// AuthService handles login, registration and session lifecycle
type AuthService struct {
	users       *repository.UserRepository
	tokens      *auth.TokenService
	sessions    *session.Store
	invitations *InvitationService
	audit       *AuditTrail
}

// NewAuthService creates a new auth service
func NewAuthService(
	users *repository.UserRepository,
	tokens *auth.TokenService,
	sessions *session.Store,
	invitations *InvitationService,
	audit *AuditTrail,
) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		sessions:    sessions,
		invitations: invitations,
		audit:       audit,
	}
}

type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	CompanyID string `json:"company_id,omitempty"`
}

// TokenResponse is returned by login, register and refresh
type TokenResponse struct {
	Message      string       `json:"message"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *models.User `json:"user,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login verifies credentials. Unknown emails still pay for a bcrypt
// comparison, and the account status is only disclosed after the password
// has been verified.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, clientIP string) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		auth.CheckPassword("", req.Password)
		s.loginFailed(ctx, models.Identity{Email: email}, "unknown email")
		return nil, ErrInvalidCredentials
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.loginFailed(ctx, user.Identity(), "wrong password")
		return nil, ErrInvalidCredentials
	}
	if req.CompanyID != "" && req.CompanyID != user.CompanyID {
		s.loginFailed(ctx, user.Identity(), "company mismatch")
		return nil, ErrInvalidCredentials
	}
	if user.Status != models.UserActive {
		s.loginFailed(ctx, user.Identity(), "inactive account")
		return nil, auth.ErrAccountInactive
	}

	now := time.Now().UTC()
	if err := s.users.Touch(ctx, user.ID, map[string]any{"last_login": now, "last_login_ip": clientIP}); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record last login")
	}
	user.LastLogin = &now

	resp, err := s.issue(ctx, user.Identity(), "Login successful")
	if err != nil {
		return nil, err
	}
	pub := user.Public()
	resp.User = &pub
	s.audit.Record(ctx, AuditEntry{Actor: user.Identity(), Action: "auth.login", ResourceType: "user", ResourceID: user.ID})
	return resp, nil
}

// Register accepts an invitation and signs the new user in
func (s *AuthService) Register(ctx context.Context, reg models.Registration) (*TokenResponse, error) {
	user, err := s.invitations.Accept(ctx, reg)
	if err != nil {
		return nil, err
	}
	resp, err := s.issue(ctx, user.Identity(), "User created successfully")
	if err != nil {
		return nil, err
	}
	pub := user.Public()
	resp.User = &pub
	return resp, nil
}

// Refresh exchanges a refresh token for a new access token with the same
// claims. The refresh token is rotated. Accounts deactivated or moved since
// the session was opened are refused.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if s.sessions == nil {
		return nil, session.ErrInvalidRefresh
	}
	id, err := s.sessions.Exchange(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, id.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	if user.Status != models.UserActive {
		return nil, auth.ErrAccountInactive
	}
	if user.CompanyID != id.CompanyID || user.ID != id.UserID {
		if err := s.sessions.RevokeUser(ctx, user.ID); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to revoke sessions")
		}
		return nil, auth.ErrTokenTenantMismatch
	}

	return s.issue(ctx, id, "Token refreshed")
}

// Logout ends the session behind refreshToken
func (s *AuthService) Logout(ctx context.Context, id models.Identity, refreshToken string) error {
	if s.sessions == nil || refreshToken == "" {
		return nil
	}
	if !strings.HasPrefix(refreshToken, id.UserID+".") {
		return apperr.Validation("Refresh token does not belong to caller")
	}
	return s.sessions.Revoke(ctx, refreshToken)
}

// Me returns the caller's persisted account
func (s *AuthService) Me(ctx context.Context, id models.Identity) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	pub := user.Public()
	return &pub, nil
}

// ChangePassword replaces the caller's password and ends all their sessions
func (s *AuthService) ChangePassword(ctx context.Context, id models.Identity, req ChangePasswordRequest) error {
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	if req.NewPassword == req.CurrentPassword {
		return apperr.Validation("New password must be different from the current password")
	}

	user, err := s.users.FindByEmail(ctx, id.Email)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return apperr.Validation("Current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.Touch(ctx, user.ID, map[string]any{
		"hashed_password":         hash,
		"password_reset_required": false,
		"updated_at":              time.Now().UTC(),
	}); err != nil {
		return err
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeUser(ctx, user.ID); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to revoke sessions")
		}
	}
	s.audit.Record(ctx, AuditEntry{Actor: id, Action: "auth.change_password", ResourceType: "user", ResourceID: user.ID})
	return nil
}

func (s *AuthService) issue(ctx context.Context, id models.Identity, message string) (*TokenResponse, error) {
	access, _, err := s.tokens.Issue(id, 0)
	if err != nil {
		return nil, err
	}
	resp := &TokenResponse{
		Message:     message,
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
	}
	if s.sessions != nil {
		refresh, err := s.sessions.Create(ctx, id)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = refresh
	}
	return resp, nil
}

func (s *AuthService) loginFailed(ctx context.Context, id models.Identity, reason string) {
	s.audit.Record(ctx, AuditEntry{Actor: id, Action: "auth.login", ResourceType: "user", ResourceID: id.UserID, Failed: true, Detail: reason})
}
