package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/closet/internal/auth"
)

// AuthHandler handles the admin session endpoints.
type AuthHandler struct {
	Tokens          TokenStore
	JWTSecret       string
	AdminSecretHash string
}

type loginRequest struct {
	Secret string `json:"secret"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Secret == "" {
		jsonError(w, http.StatusBadRequest, "secret required")
		return
	}

	if h.AdminSecretHash == "" || !auth.CheckSecret(h.AdminSecretHash, req.Secret) {
		slog.Warn("admin login failed", "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("admin logged in", "remote", r.RemoteAddr)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.Tokens.RevokeToken(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("admin logged out")
	jsonSuccess(w, http.StatusOK, nil)
}
