package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otcheredev/roadservice-api/internal/metrics"
	"github.com/otcheredev/roadservice-api/internal/middleware"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/respond"
)

// Deps is everything the router mounts
type Deps struct {
	Authenticator *middleware.Authenticator
	LoginLimiter  *middleware.RateLimiter

	Health      *HealthHandler
	Auth        *AuthHandler
	Invitations *InvitationHandler
	Users       *UserHandler
	Companies   *CompanyHandler
	Setup       *SetupHandler
	WS          *WSHandler

	CORS    cors.Options
	Metrics bool
}

// NewRouter builds the HTTP surface. Every route outside the public list
// passes the fast path; routes that mutate state or read tenant data also
// pass revalidation against the stored account.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	if d.Metrics {
		r.Use(metrics.Instrument)
	}
	r.Use(cors.Handler(d.CORS))
	r.Use(d.Authenticator.Verify)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Detail(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Detail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Public
	r.Get("/", d.Health.Root)
	r.Get("/health", d.Health.Health)
	r.Get("/ready", d.Health.Ready)
	if d.Metrics {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/setup", func(r chi.Router) {
		r.Get("/status", d.Setup.Status)
		r.Post("/initialize", d.Setup.Initialize)
	})

	r.Route("/auth", func(r chi.Router) {
		limited := r.With()
		if d.LoginLimiter != nil {
			limited = r.With(d.LoginLimiter.Handler)
		}
		limited.Post("/login", d.Auth.Login)
		limited.Post("/register", d.Auth.Register)
		r.Post("/refresh", d.Auth.Refresh)

		// Fast path
		r.Get("/session", d.Auth.Session)

		r.Group(func(r chi.Router) {
			r.Use(d.Authenticator.Revalidate)
			r.Post("/logout", d.Auth.Logout)
			r.Get("/me", d.Auth.Me)
			r.Post("/change-password", d.Auth.ChangePassword)
		})
	})

	r.Get("/ws", d.WS.Serve)

	// Authoritative path
	r.Group(func(r chi.Router) {
		r.Use(d.Authenticator.Revalidate)

		r.Get("/companies/my-company", d.Companies.MyCompany)

		admin := middleware.RequireRole(models.RoleCompanyAdmin)

		r.Route("/invitations", func(r chi.Router) {
			r.Use(admin)
			r.Post("/", d.Invitations.Create)
			r.Get("/", d.Invitations.List)
			r.Get("/{id}", d.Invitations.Get)
			r.Delete("/{id}", d.Invitations.Cancel)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(admin).Get("/", d.Users.List)
			// Users below company_admin may read their own record
			r.Get("/{id}", d.Users.Get)
			r.With(admin).Put("/{id}", d.Users.Update)
			r.With(admin).Delete("/{id}", d.Users.Delete)
			r.With(admin).Post("/{id}/reset-password", d.Users.ResetPassword)
		})

		r.With(admin).Get("/audit-logs", d.Companies.AuditLogs)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleSuperAdmin))
			r.Get("/stats", d.Companies.Stats)
			r.Post("/companies", d.Companies.Create)
			r.Get("/companies", d.Companies.List)
			r.Get("/companies/{id}", d.Companies.Get)
			r.Put("/companies/{id}", d.Companies.Update)
		})
	})

	return r
}
