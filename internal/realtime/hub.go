// Package realtime fans tenant scoped events out to websocket clients.
// Delivery is best effort: a failed send drops the connection.
package realtime

import (
	"sync"
	"time"

	"github.com/otcheredev/roadservice-api/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Event is the message pushed to clients
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Conn is a client connection the hub can write to
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Hub tracks connections per tenant. Create one per process with NewHub
// and call Close on shutdown.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[Conn]struct{}
	now    func() time.Time
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[Conn]struct{}),
		now:   time.Now,
	}
}

// Register adds conn to tenant's channel. It reports false after Close.
func (h *Hub) Register(tenant string, conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	set, ok := h.conns[tenant]
	if !ok {
		set = make(map[Conn]struct{})
		h.conns[tenant] = set
	}
	if _, dup := set[conn]; !dup {
		set[conn] = struct{}{}
		metrics.ConnectionOpened()
	}
	log.Debug().Str("company_id", tenant).Int("connections", len(set)).Msg("Realtime client connected")
	return true
}

// Unregister removes conn. Unknown connections are ignored.
func (h *Hub) Unregister(tenant string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(tenant, conn)
}

// remove must be called with mu held
func (h *Hub) remove(tenant string, conn Conn) {
	set, ok := h.conns[tenant]
	if !ok {
		return
	}
	if _, ok := set[conn]; !ok {
		return
	}
	delete(set, conn)
	metrics.ConnectionClosed()
	if len(set) == 0 {
		delete(h.conns, tenant)
	}
}

// Count returns the number of connections on tenant's channel
func (h *Hub) Count(tenant string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[tenant])
}

// Broadcast sends an event to every connection of tenant and returns how
// many sends succeeded. Connections that fail are closed and dropped.
func (h *Hub) Broadcast(tenant, eventType string, data any) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns[tenant]))
	for c := range h.conns[tenant] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}

	ev := Event{Type: eventType, Data: data, Timestamp: h.now().UTC()}
	delivered := 0
	var failed []Conn
	for _, c := range targets {
		if err := c.WriteJSON(ev); err != nil {
			log.Warn().Err(err).Str("company_id", tenant).Str("event", eventType).Msg("Dropping realtime client after failed send")
			failed = append(failed, c)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, c := range failed {
			h.remove(tenant, c)
		}
		h.mu.Unlock()
		for _, c := range failed {
			c.Close()
		}
	}
	return delivered
}

// Close disconnects everyone and refuses new registrations
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.conns
	h.conns = make(map[string]map[Conn]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, set := range all {
		for c := range set {
			c.Close()
			metrics.ConnectionClosed()
		}
	}
}
