package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/auth"
)

// AuthHandler groups the authentication HTTP handlers.
type AuthHandler struct {
	svc    *auth.AuthService
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *auth.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger.Named("auth_handler"),
	}
}

// loginRequest is the JSON body expected by POST /api/v1/auth/login.
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// loginResponse is returned on successful login. The same token is used as
// the Bearer credential for REST and as the `token` query parameter for the
// WebSocket endpoints.
type loginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			errJSON(w, http.StatusUnauthorized, "invalid email or password", "invalid_credentials")
		case errors.Is(err, auth.ErrUserDisabled):
			errJSON(w, http.StatusUnauthorized, "account is disabled", "user_disabled")
		default:
			h.logger.Error("login failed", zap.Error(err))
			ErrInternal(w)
		}
		return
	}

	Ok(w, loginResponse{AccessToken: token.AccessToken, ExpiresAt: token.ExpiresAt})
}
