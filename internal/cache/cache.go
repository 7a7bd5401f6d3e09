package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// Cache is a volatile key/value store with expiry
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Take returns the value and removes the key in one step
	Take(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Clear removes all keys matching pattern; only a trailing * is supported
	Clear(ctx context.Context, pattern string) error
	Close() error
}

// Key joins parts with ':'
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
