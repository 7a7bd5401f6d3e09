// Package session manages refresh tokens on top of the volatile cache.
// A refresh token is "<user id>.<session id>.<secret>"; only the sha256 of
// the secret is stored.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/cache"
	"github.com/otcheredev/roadservice-api/internal/models"
)

const DefaultTTL = 7 * 24 * time.Hour

// ErrInvalidRefresh is returned for unknown, reused or malformed refresh tokens
var ErrInvalidRefresh = apperr.Authentication("Invalid refresh token")

type record struct {
	Identity   models.Identity `json:"identity"`
	SecretHash string          `json:"secret_hash"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Store issues, rotates and revokes refresh sessions
type Store struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewStore creates a session store. A non-positive ttl uses DefaultTTL.
func NewStore(c cache.Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: c, ttl: ttl, now: time.Now}
}

// TTL returns the refresh token lifetime
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create opens a session for id and returns its refresh token
func (s *Store) Create(ctx context.Context, id models.Identity) (string, error) {
	if id.UserID == "" || strings.Contains(id.UserID, ".") {
		return "", errors.New("session: invalid user id")
	}
	secret, err := randomSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate refresh secret: %w", err)
	}
	sid := uuid.NewString()

	raw, err := json.Marshal(record{Identity: id, SecretHash: hash(secret), CreatedAt: s.now().UTC()})
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.cache.Set(ctx, key(id.UserID, sid), raw, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return id.UserID + "." + sid + "." + secret, nil
}

// Exchange consumes a refresh token and returns the identity it was issued
// for. Each token works once; callers open a new session for the rotation.
func (s *Store) Exchange(ctx context.Context, token string) (models.Identity, error) {
	userID, sid, secret, ok := parse(token)
	if !ok {
		return models.Identity{}, ErrInvalidRefresh
	}

	raw, err := s.cache.Take(ctx, key(userID, sid))
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.Identity{}, ErrInvalidRefresh
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to load session: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.Identity{}, ErrInvalidRefresh
	}
	if subtle.ConstantTimeCompare([]byte(rec.SecretHash), []byte(hash(secret))) != 1 {
		return models.Identity{}, ErrInvalidRefresh
	}
	return rec.Identity, nil
}

// Revoke ends the session behind token. Unknown tokens are ignored.
func (s *Store) Revoke(ctx context.Context, token string) error {
	userID, sid, _, ok := parse(token)
	if !ok {
		return nil
	}
	return s.cache.Delete(ctx, key(userID, sid))
}

// RevokeUser ends every session of userID
func (s *Store) RevokeUser(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return s.cache.Clear(ctx, key(userID, "*"))
}

func key(userID, sid string) string {
	return cache.Key("refresh", userID, sid)
}

func parse(token string) (userID, sid, secret string, ok bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", "", "", false
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, ":*") {
			return "", "", "", false
		}
	}
	return parts[0], parts[1], parts[2], true
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
