package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/middleware"
	"github.com/otcheredev/roadservice-api/internal/realtime"
	"github.com/otcheredev/roadservice-api/internal/respond"
	"github.com/rs/zerolog/log"
)

const defaultPongWait = 60 * time.Second

// WSHandler attaches websocket clients to their tenant's channel. Tokens
// are checked on the fast path only.
type WSHandler struct {
	hub      *realtime.Hub
	authn    *middleware.Authenticator
	upgrader websocket.Upgrader
	pongWait time.Duration
}

type WSOption func(*WSHandler)

// WithPongWait sets how long a connection may go without any frame from
// the peer. Pings are sent at nine tenths of it.
func WithPongWait(d time.Duration) WSOption {
	return func(h *WSHandler) {
		if d > 0 {
			h.pongWait = d
		}
	}
}

func NewWSHandler(hub *realtime.Hub, authn *middleware.Authenticator, allowedOrigins []string, opts ...WSOption) *WSHandler {
	h := &WSHandler{
		hub:   hub,
		authn: authn,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		pongWait: defaultPongWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inbound struct {
	Type string `json:"type"`
}

// Serve upgrades the request. The token comes from ?access_token= since
// browsers cannot set headers on websocket requests.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("access_token")
	if raw == "" {
		raw, _ = middleware.BearerToken(r)
	}
	if raw == "" {
		respond.Error(w, r, auth.ErrMissingToken)
		return
	}
	id, err := h.authn.VerifyToken(raw)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	tenant := id.CompanyID
	if requested := r.URL.Query().Get("company_id"); requested != "" && auth.IsSuperAdmin(id) {
		tenant = requested
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := realtime.NewClient(conn)
	if !h.hub.Register(tenant, client) {
		client.Close()
		return
	}
	defer func() {
		h.hub.Unregister(tenant, client)
		client.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go h.keepalive(client, done)

	extend := func(string) error { return conn.SetReadDeadline(time.Now().Add(h.pongWait)) }
	extend("")
	conn.SetPongHandler(extend)
	for {
		data, err := client.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("user_id", id.UserID).Msg("Websocket closed")
			}
			return
		}
		extend("")

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if err := client.WriteJSON(realtime.Event{Type: "pong", Timestamp: time.Now().UTC()}); err != nil {
				return
			}
		}
	}
}

// keepalive pings the peer so listen-only clients keep their read deadline
// moving through pong replies.
func (h *WSHandler) keepalive(client *realtime.Client, done <-chan struct{}) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
