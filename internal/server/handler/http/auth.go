// Package http provides the JSON handlers and router of the communication
// log API.
package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/commlog/internal/models"
	"github.com/atinyakov/commlog/internal/service"
)

// AuthService defines the account operations required by the HTTP handlers.
type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*service.AuthResult, error)
	Login(ctx context.Context, req models.LoginRequest) (*service.AuthResult, error)
	CurrentUser(ctx context.Context, actor models.Identity) (*models.PublicUser, error)
	Logout(ctx context.Context, actor models.Identity) error
}

// AuthHandler handles registration, login, logout and the current user.
type AuthHandler struct {
	// AuthService performs the underlying account operations.
	AuthService AuthService
	Log         *zap.Logger
}

// Register handles POST /api/auth/register. It responds {token, user}.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	res, err := h.AuthService.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Login handles POST /api/auth/login. It responds {token, user}.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	res, err := h.AuthService.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.AuthService.Logout(r.Context(), id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// CurrentUser handles GET /api/user.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.AuthService.CurrentUser(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
