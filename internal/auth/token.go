package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/otcheredev/roadservice-api/internal/models"
)

const (
	DefaultIssuer = "road-service-api"
	DefaultTTL    = 24 * time.Hour
)

// TokenService issues and verifies HS256 session tokens
type TokenService struct {
	secret     []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
	failClosed bool
}

// TokenOption configures a TokenService
type TokenOption func(*TokenService)

// WithIssuer overrides the iss claim
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithTTL sets the lifetime used when Issue is called with a zero ttl
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPermissiveRoles makes Verify default unrecognised role claims to
// worker instead of rejecting the token
func WithPermissiveRoles() TokenOption {
	return func(s *TokenService) {
		s.failClosed = false
	}
}

// NewTokenService creates a token service signing with secret
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret is required")
	}
	s := &TokenService{
		secret:     []byte(secret),
		issuer:     DefaultIssuer,
		ttl:        DefaultTTL,
		now:        time.Now,
		failClosed: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the default token lifetime
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for id. A zero ttl uses the configured default; a
// negative ttl yields an already expired token.
func (s *TokenService) Issue(id models.Identity, ttl time.Duration) (string, time.Time, error) {
	if id.Email == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	if ttl == 0 {
		ttl = s.ttl
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	claims := models.SessionClaims{
		UserID:    id.UserID,
		CompanyID: id.CompanyID,
		Name:      id.Name,
		Role:      id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Email,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer and expiry, then builds the identity
// from the claims. The signature is checked before any claim is trusted.
func (s *TokenService) Verify(raw string) (models.Identity, error) {
	claims := &models.SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		// exp == now counts as expired: the validator requires now < exp
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, ErrExpiredToken
		}
		return models.Identity{}, ErrInvalidToken
	}

	if claims.Subject == "" {
		return models.Identity{}, ErrMalformedToken
	}

	role := claims.Role
	switch {
	case role == "":
		role = models.RoleWorker
	case !role.Valid():
		if s.failClosed {
			return models.Identity{}, ErrMalformedToken
		}
		role = models.RoleWorker
	}

	return models.Identity{
		Email:     claims.Subject,
		UserID:    claims.UserID,
		CompanyID: claims.CompanyID,
		Name:      claims.Name,
		Role:      role,
	}, nil
}
