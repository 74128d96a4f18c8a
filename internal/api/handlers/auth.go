package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ainotes/secondbrain/internal/api"
	"github.com/ainotes/secondbrain/internal/api/middleware"
	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/service"
)

type AuthService interface {
	SignInWithGoogle(ctx context.Context, credential string) (*service.AuthResult, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type GoogleAuthRequest struct {
	Credential string `json:"credential"`
}

type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	User        *UserResponse `json:"user"`
}

type UserResponse struct {
	ID        string `json:"id"`
	GoogleID  string `json:"google_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Picture   string `json:"picture,omitempty"`
	CreatedAt string `json:"created_at"`
}

func userToResponse(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		GoogleID:  u.GoogleID,
		Email:     u.Email,
		Name:      u.Name,
		Picture:   u.Picture,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// GoogleAuth exchanges a Google sign-in credential for a session token.
func (h *AuthHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	var req GoogleAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Credential == "" {
		api.Error(w, http.StatusBadRequest, "credential is required")
		return
	}

	result, err := h.svc.SignInWithGoogle(r.Context(), req.Credential)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AuthResponse{
		AccessToken: result.AccessToken,
		User:        userToResponse(result.User),
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, userToResponse(user))
}
