package handlers

import (
	"net/http"

	"github.com/otcheredev/roadservice-api/internal/middleware"
	"github.com/otcheredev/roadservice-api/internal/models"
	"github.com/otcheredev/roadservice-api/internal/respond"
	"github.com/otcheredev/roadservice-api/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// sessionResponse is what the fast path knows about the caller
type sessionResponse struct {
	Authenticated bool            `json:"authenticated"`
	User          models.Identity `json:"user"`
}

// Login exchanges credentials for tokens
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), req, middleware.ClientIP(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, resp)
}

// Register accepts an invitation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reg models.Registration
	if err := decode(w, r, &reg); err != nil {
		respond.Error(w, r, err)
		return
	}

	resp, err := h.auth.Register(r.Context(), reg)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	resp, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, resp)
}

// Logout revokes the refresh token in the body, if any
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	// The body is optional; without it only the access token is dropped client side
	var req refreshRequest
	if err := decode(w, r, &req); err != nil && err != errEmptyBody {
		respond.Error(w, r, err)
		return
	}

	if err := h.auth.Logout(r.Context(), id, req.RefreshToken); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, message{Message: "Logged out successfully"})
}

// Session answers from the token alone
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: id})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	user, err := h.auth.Me(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req services.ChangePasswordRequest
	if err := decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), id, req); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, message{Message: "Password changed successfully"})
}
