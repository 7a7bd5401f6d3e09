package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache keeps entries in process memory. Contents are lost on restart.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheItem
	now  func() time.Time
	done chan struct{}
	once sync.Once
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates a memory cache and starts its janitor
func NewMemoryCache() *MemoryCache {
	mc := &MemoryCache{
		data: make(map[string]cacheItem),
		now:  time.Now,
		done: make(chan struct{}),
	}
	go mc.cleanup(time.Minute)
	return mc
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(key)
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = cacheItem{
		value:      append([]byte(nil), value...),
		expiration: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryCache) Take(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.lookup(key)
	delete(m.data, key)
	return v, err
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryCache) Clear(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.data {
		if matchPattern(key, pattern) {
			delete(m.data, key)
		}
	}
	return nil
}

// Len returns the number of live entries
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	now := m.now()
	for _, item := range m.data {
		if now.Before(item.expiration) {
			n++
		}
	}
	return n
}

// Close stops the janitor. It is safe to call more than once.
func (m *MemoryCache) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

// lookup must be called with mu held
func (m *MemoryCache) lookup(key string) ([]byte, error) {
	item, ok := m.data[key]
	if !ok || !m.now().Before(item.expiration) {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), item.value...), nil
}

func (m *MemoryCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for key, item := range m.data {
				if !now.Before(item.expiration) {
					delete(m.data, key)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

func matchPattern(s, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(s, prefix)
	}
	return s == pattern
}
