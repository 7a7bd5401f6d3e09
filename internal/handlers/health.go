package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/otcheredev/roadservice-api/internal/respond"
	"github.com/rs/zerolog/log"
)

const checkTimeout = 3 * time.Second

// Check probes one dependency
type Check func(ctx context.Context) error

type HealthHandler struct {
	version string
	checks  map[string]Check
}

// NewHealthHandler creates a health handler. Every check must pass for the
// service to report ready.
func NewHealthHandler(version string, checks map[string]Check) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

type infoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, infoResponse{
		Name:    "RoadService API",
		Version: h.version,
		Status:  "running",
	})
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Services:  h.run(r.Context()),
	}

	status := http.StatusOK
	for _, s := range response.Services {
		if s != "healthy" {
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	respond.JSON(w, status, response)
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	for _, s := range h.run(r.Context()) {
		if s != "healthy" {
			respond.Detail(w, http.StatusServiceUnavailable, "Service not ready")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *HealthHandler) run(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	out := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			log.Warn().Err(err).Str("service", name).Msg("Health check failed")
			out[name] = "unhealthy"
			continue
		}
		out[name] = "healthy"
	}
	return out
}
