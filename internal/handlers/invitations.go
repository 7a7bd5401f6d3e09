package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/respond"
	"github.com/otcheredev/roadservice-api/internal/services"
)

type InvitationHandler struct {
	invitations *services.InvitationService
}

func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

// Create issues a pending invitation
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req models.InvitationRequest
	if err := decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	inv, err := h.invitations.Issue(r.Context(), actor, req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, inv)
}

// List returns invitations, optionally filtered by ?status=
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	offset, limit := page(r)
	status := models.InvitationStatus(r.URL.Query().Get("status"))
	invs, err := h.invitations.List(r.Context(), actor, status, offset, limit)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, invs)
}

func (h *InvitationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	inv, err := h.invitations.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, inv)
}

func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := h.invitations.Cancel(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, message{Message: "Invitation cancelled"})
}
