package handlers

import (
	"net/http"

	"github.com/otcheredev/roadservice-api/internal/respond"
	"github.com/otcheredev/roadservice-api/internal/services"
)

type SetupHandler struct {
	setup *services.SetupService
}

func NewSetupHandler(setup *services.SetupService) *SetupHandler {
	return &SetupHandler{setup: setup}
}

func (h *SetupHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.setup.Status(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, status)
}

type setupResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
}

// Initialize creates the first super admin
func (h *SetupHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req services.SetupRequest
	if err := decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	user, err := h.setup.Initialize(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, setupResponse{
		Message: "System initialized",
		UserID:  user.ID,
		Email:   user.Email,
	})
}
