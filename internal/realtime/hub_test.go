package realtime

import (
	"errors"
	"sync"
	"testing"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   []Event
	fail   bool
	closed bool
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.sent = append(f.sent, v.(Event))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestBroadcastIsTenantScoped(t *testing.T) {
	h := NewHub()
	a1, a2, b1 := &fakeConn{}, &fakeConn{}, &fakeConn{}
	h.Register("A", a1)
	h.Register("A", a2)
	h.Register("B", b1)

	if n := h.Broadcast("A", "user_updated", map[string]string{"id": "u1"}); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if len(a1.sent) != 1 || len(a2.sent) != 1 || len(b1.sent) != 0 {
		t.Fatalf("unexpected fan-out a1=%d a2=%d b1=%d", len(a1.sent), len(a2.sent), len(b1.sent))
	}
	if a1.sent[0].Type != "user_updated" || a1.sent[0].Timestamp.IsZero() {
		t.Fatalf("unexpected event %+v", a1.sent[0])
	}
}

func TestFailedSendDropsConnection(t *testing.T) {
	h := NewHub()
	good, bad := &fakeConn{}, &fakeConn{fail: true}
	h.Register("A", good)
	h.Register("A", bad)

	if n := h.Broadcast("A", "ping", nil); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if h.Count("A") != 1 {
		t.Fatalf("failed connection should be removed, count=%d", h.Count("A"))
	}
	if !bad.closed {
		t.Fatal("failed connection should be closed")
	}
}

func TestUnregisterAndClose(t *testing.T) {
	h := NewHub()
	c1, c2 := &fakeConn{}, &fakeConn{}
	h.Register("A", c1)
	h.Register("B", c2)

	h.Unregister("A", c1)
	h.Unregister("A", c1)
	if h.Count("A") != 0 {
		t.Fatalf("expected empty channel, got %d", h.Count("A"))
	}

	h.Close()
	if !c2.closed {
		t.Fatal("Close should disconnect remaining clients")
	}
	if h.Register("B", &fakeConn{}) {
		t.Fatal("Register after Close should fail")
	}
	if n := h.Broadcast("B", "x", nil); n != 0 {
		t.Fatalf("expected no deliveries after Close, got %d", n)
	}
}
