package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/respond"
	"github.com/otcheredev/roadservice-api/internal/services"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	offset, limit := page(r)
	users, err := h.users.List(r.Context(), actor, offset, limit)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	user, err := h.users.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var patch models.UserUpdate
	if err := decode(w, r, &patch); err != nil {
		respond.Error(w, r, err)
		return
	}

	user, err := h.users.Update(r.Context(), actor, chi.URLParam(r, "id"), patch)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := h.users.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, message{Message: "User deleted"})
}

// ResetPassword issues a temporary password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	res, err := h.users.ResetPassword(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}
