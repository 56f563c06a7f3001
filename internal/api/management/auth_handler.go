package management

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/CaioWing/harbor-console/internal/api/middleware"
	"github.com/CaioWing/harbor-console/internal/api/response"
	"github.com/CaioWing/harbor-console/internal/auth"
)

type AuthHandler struct {
	jwtMgr *auth.JWTManager
	creds  *auth.Credentials
}

func NewAuthHandler(jwtMgr *auth.JWTManager, creds *auth.Credentials) *AuthHandler {
	return &AuthHandler{jwtMgr: jwtMgr, creds: creds}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.creds.Verify(req.Username, req.Password) {
		response.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.issue(w, req.Username)
}

// Refresh generates a new token for an already authenticated operator.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(middleware.UserKey).(string)
	if !ok || user == "" {
		response.Error(w, http.StatusUnauthorized, "invalid token")
		return
	}

	h.issue(w, user)
}

func (h *AuthHandler) issue(w http.ResponseWriter, user string) {
	token, expiresAt, err := h.jwtMgr.Generate(user)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	response.JSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}
