package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/cache"
	"github.com/otcheredev/roadservice-api/internal/middleware"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/realtime"
	"github.com/otcheredev/roadservice-api/internal/repository"
	"github.com/otcheredev/roadservice-api/internal/services"
	"github.com/otcheredev/roadservice-api/internal/session"
	"github.com/otcheredev/roadservice-api/internal/store"
	"github.com/otcheredev/roadservice-api/internal/store/storetest"
)

const (
	serviceKey = "service-key"
	secret     = "0123456789abcdef0123456789abcdef"
)

type testAPI struct {
	srv    *storetest.Server
	http   *httptest.Server
	tokens *auth.TokenService
	hub    *realtime.Hub
}

func newTestAPI(t *testing.T, wsOpts ...WSOption) *testAPI {
	t.Helper()

	srv := storetest.NewServer(serviceKey)
	t.Cleanup(srv.Close)
	srv.Unique("users", "email")
	srv.Seed("companies",
		storetest.Row{"id": "T", "name": "Transportes", "status": "active"},
		storetest.Row{"id": "U", "name": "Urbano", "status": "active"},
	)

	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })
	hub := realtime.NewHub()
	t.Cleanup(hub.Close)

	client := store.NewClient(srv.URL, serviceKey)
	users := repository.NewUserRepository(client, false)
	companies := repository.NewCompanyRepository(client, false)
	invitations := repository.NewInvitationRepository(client, false)
	sessions := session.NewStore(mc, time.Hour)
	audit := services.NewAuditTrail(nil)

	invSvc := services.NewInvitationService(invitations, users, companies, audit, hub, 0)
	authSvc := services.NewAuthService(users, tokens, sessions, invSvc, audit)
	authn := middleware.NewAuthenticator(tokens, users, audit)

	router := NewRouter(Deps{
		Authenticator: authn,
		Health:        NewHealthHandler("test", map[string]Check{"store": client.Ping}),
		Auth:          NewAuthHandler(authSvc),
		Invitations:   NewInvitationHandler(invSvc),
		Users:         NewUserHandler(services.NewUserService(users, sessions, audit, hub)),
		Companies:     NewCompanyHandler(services.NewCompanyService(companies, users, audit), audit),
		Setup:         NewSetupHandler(services.NewSetupService(companies, users, audit, "setup")),
		WS:            NewWSHandler(hub, authn, []string{"*"}, wsOpts...),
		CORS:          cors.Options{AllowedOrigins: []string{"*"}},
	})

	api := &testAPI{srv: srv, http: httptest.NewServer(router), tokens: tokens, hub: hub}
	t.Cleanup(api.http.Close)
	return api
}

func (a *testAPI) seedUser(t *testing.T, id, email, company string, role models.Role) {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	a.srv.Seed("users", storetest.Row{
		"id": id, "email": email, "name": id, "company_id": company,
		"role": string(role), "status": "active", "hashed_password": hash,
	})
}

func (a *testAPI) token(t *testing.T, id, email, company string, role models.Role) string {
	t.Helper()
	tok, _, err := a.tokens.Issue(models.Identity{Email: email, UserID: id, CompanyID: company, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequestWithContext(context.Background(), method, a.http.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp.StatusCode, out.Bytes()
}

func TestFailedLoginsAreIdentical(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser(t, "u1", "driver@t.com", "T", models.RoleWorker)

	creds := map[string]string{"email": "driver@t.com", "password": "wrong-password"}
	s1, b1 := api.do(t, http.MethodPost, "/auth/login", "", creds)
	s2, b2 := api.do(t, http.MethodPost, "/auth/login", "", creds)
	s3, b3 := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@t.com", "password": "wrong-password"})

	if s1 != http.StatusUnauthorized || s2 != http.StatusUnauthorized || s3 != http.StatusUnauthorized {
		t.Fatalf("statuses %d %d %d, want 401", s1, s2, s3)
	}
	if !bytes.Equal(b1, b2) || !bytes.Equal(b1, b3) {
		t.Fatalf("responses differ: %s | %s | %s", b1, b2, b3)
	}
}

func TestLoginSuccess(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser(t, "u1", "driver@t.com", "T", models.RoleWorker)

	status, body := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "driver@t.com", "password": "password123"})
	if status != http.StatusOK {
		t.Fatalf("status %d: %s", status, body)
	}
	var resp services.TokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	status, body = api.do(t, http.MethodGet, "/auth/me", resp.AccessToken, nil)
	if status != http.StatusOK {
		t.Fatalf("me: %d %s", status, body)
	}
	if bytes.Contains(body, []byte("hashed_password")) {
		t.Fatal("password hash leaked")
	}
}

func TestInvitationRegistrationFlow(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser(t, "admin", "admin@t.com", "T", models.RoleCompanyAdmin)
	adminToken := api.token(t, "admin", "admin@t.com", "T", models.RoleCompanyAdmin)

	status, body := api.do(t, http.MethodPost, "/invitations", adminToken, map[string]string{
		"email": "worker@x.com", "name": "Worker", "role": "worker",
	})
	if status != http.StatusCreated {
		t.Fatalf("invite: %d %s", status, body)
	}
	var inv models.Invitation
	json.Unmarshal(body, &inv)
	if inv.Status != models.InvitationPending || inv.CompanyID != "T" {
		t.Fatalf("unexpected invitation %+v", inv)
	}

	reg := map[string]string{
		"email": "worker@x.com", "name": "Worker", "password": "password123",
		"role": "worker", "company_id": "U",
	}
	status, body = api.do(t, http.MethodPost, "/auth/register", "", reg)
	if status != http.StatusBadRequest {
		t.Fatalf("wrong tenant register: %d %s", status, body)
	}
	row, _ := api.srv.Find("user_invitations", "id", inv.ID)
	if row["status"] != "pending" {
		t.Fatalf("state changed on rejected register: %v", row["status"])
	}
	if _, ok := api.srv.Find("users", "email", "worker@x.com"); ok {
		t.Fatal("user created on rejected register")
	}

	reg["company_id"] = "T"
	status, body = api.do(t, http.MethodPost, "/auth/register", "", reg)
	if status != http.StatusCreated {
		t.Fatalf("register: %d %s", status, body)
	}
	row, _ = api.srv.Find("user_invitations", "id", inv.ID)
	if row["status"] != "accepted" {
		t.Fatalf("invitation status %v, want accepted", row["status"])
	}
	user, ok := api.srv.Find("users", "email", "worker@x.com")
	if !ok || user["company_id"] != "T" {
		t.Fatalf("user not created in tenant T: %+v", user)
	}

	status, _ = api.do(t, http.MethodPost, "/auth/register", "", reg)
	if status != http.StatusBadRequest {
		t.Fatalf("second register: %d", status)
	}
}

func TestCrossTenantAccess(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser(t, "admin-t", "admin@t.com", "T", models.RoleCompanyAdmin)
	api.seedUser(t, "worker-u", "worker@u.com", "U", models.RoleWorker)
	adminToken := api.token(t, "admin-t", "admin@t.com", "T", models.RoleCompanyAdmin)

	status, _ := api.do(t, http.MethodGet, "/users/worker-u", adminToken, nil)
	if status != http.StatusNotFound {
		t.Fatalf("foreign user: %d, want 404", status)
	}

	status, body := api.do(t, http.MethodGet, "/users", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list: %d %s", status, body)
	}
	var list []models.User
	json.Unmarshal(body, &list)
	for _, u := range list {
		if u.CompanyID != "T" {
			t.Fatalf("leaked user %+v", u)
		}
	}

	status, _ = api.do(t, http.MethodPost, "/invitations", adminToken, map[string]string{
		"email": "x@x.com", "name": "X", "role": "worker", "company_id": "U",
	})
	if status != http.StatusForbidden {
		t.Fatalf("invite into foreign tenant: %d, want 403", status)
	}
}

func TestRoleGates(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser(t, "w", "w@t.com", "T", models.RoleWorker)
	workerToken := api.token(t, "w", "w@t.com", "T", models.RoleWorker)

	for _, path := range []string{"/invitations", "/users", "/admin/companies"} {
		if status, _ := api.do(t, http.MethodGet, path, workerToken, nil); status != http.StatusForbidden {
			t.Fatalf("%s: %d, want 403", path, status)
		}
	}
	if status, _ := api.do(t, http.MethodGet, "/companies/my-company", workerToken, nil); status != http.StatusOK {
		t.Fatalf("my-company: %d", status)
	}
	if status, _ := api.do(t, http.MethodGet, "/users/w", workerToken, nil); status != http.StatusOK {
		t.Fatalf("own record: %d", status)
	}
}

func TestStaleTokenRejectedOnAuthoritativePath(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser(t, "admin", "admin@t.com", "T", models.RoleCompanyAdmin)
	// Token claims tenant U but the account lives in T
	forged := api.token(t, "admin", "admin@t.com", "U", models.RoleCompanyAdmin)

	status, body := api.do(t, http.MethodGet, "/users", forged, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", status, body)
	}

	// The fast path trusts the claims
	if status, _ := api.do(t, http.MethodGet, "/auth/session", forged, nil); status != http.StatusOK {
		t.Fatalf("session: %d", status)
	}
}

func TestPublicAndMissingToken(t *testing.T) {
	api := newTestAPI(t)

	if status, _ := api.do(t, http.MethodGet, "/health", "", nil); status != http.StatusOK {
		t.Fatalf("health: %d", status)
	}
	if status, _ := api.do(t, http.MethodGet, "/setup/status", "", nil); status != http.StatusOK {
		t.Fatalf("setup status: %d", status)
	}

	status, body := api.do(t, http.MethodGet, "/users", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status %d", status)
	}
	var e struct {
		Detail string `json:"detail"`
	}
	json.Unmarshal(body, &e)
	if e.Detail != "Token missing or invalid" {
		t.Fatalf("detail %q", e.Detail)
	}
}

func TestWebsocket(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser(t, "admin", "admin@t.com", "T", models.RoleCompanyAdmin)
	token := api.token(t, "admin", "admin@t.com", "T", models.RoleCompanyAdmin)
	wsURL := "ws" + strings.TrimPrefix(api.http.URL, "http") + "/ws"

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token should be refused, got %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?access_token="+token, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var ev realtime.Event
	if err := conn.ReadJSON(&ev); err != nil || ev.Type != "pong" {
		t.Fatalf("expected pong, got %+v, %v", ev, err)
	}

	// The pong proves registration completed
	if n := api.hub.Count("T"); n != 1 {
		t.Fatalf("expected 1 connection on T, got %d", n)
	}

	status, body := api.do(t, http.MethodPost, "/invitations", token, map[string]string{
		"email": "new@t.com", "name": "New", "role": "worker",
	})
	if status != http.StatusCreated {
		t.Fatalf("invite: %d %s", status, body)
	}
	if err := conn.ReadJSON(&ev); err != nil || ev.Type != "invitation_created" {
		t.Fatalf("expected invitation_created event, got %+v, %v", ev, err)
	}
}

func TestWebsocketListenerSurvivesIdle(t *testing.T) {
	const wait = 200 * time.Millisecond
	api := newTestAPI(t, WithPongWait(wait))
	api.seedUser(t, "admin", "admin@t.com", "T", models.RoleCompanyAdmin)
	token := api.token(t, "admin", "admin@t.com", "T", models.RoleCompanyAdmin)
	wsURL := "ws" + strings.TrimPrefix(api.http.URL, "http") + "/ws?access_token=" + token

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// Malformed frames are ignored rather than ending the connection
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Only read from here on; the default ping handler answers server pings
	events := make(chan realtime.Event, 4)
	go func() {
		for {
			var ev realtime.Event
			if err := conn.ReadJSON(&ev); err != nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	time.Sleep(5 * wait)
	if n := api.hub.Count("T"); n != 1 {
		t.Fatalf("listen-only client dropped after idling, %d connections on T", n)
	}

	status, body := api.do(t, http.MethodPost, "/invitations", token, map[string]string{
		"email": "idle@t.com", "name": "Idle", "role": "worker",
	})
	if status != http.StatusCreated {
		t.Fatalf("invite: %d %s", status, body)
	}
	select {
	case ev, ok := <-events:
		if !ok || ev.Type != "invitation_created" {
			t.Fatalf("expected invitation_created, got %+v ok=%v", ev, ok)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}
}
