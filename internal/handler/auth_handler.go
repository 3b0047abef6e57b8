package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/certilearn/certilearn-backend/internal/config"
	"github.com/certilearn/certilearn-backend/internal/middleware"
	"github.com/certilearn/certilearn-backend/internal/response"
	"github.com/certilearn/certilearn-backend/internal/service"
	"github.com/certilearn/certilearn-backend/internal/validator"
)

// AuthHandler exposes the token exchange for the learning platform and the
// learner-facing session endpoints. Identity itself lives in the platform's
// auth system; this service only mints session tokens for already
// authenticated learners.
type AuthHandler struct {
	authService *service.AuthService
	cfg         *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{authService: authService, cfg: cfg}
}

// TokenExchangeRequest is the platform backend's request for a learner token.
type TokenExchangeRequest struct {
	UserID int `json:"user_id" binding:"required,min=1"`
}

// ExchangeToken godoc
// POST /api/v1/auth/token
// Exchanges the service API key plus a learner ID for a session JWT.
// Rejected while the learner has another active session (one device rule).
func (h *AuthHandler) ExchangeToken(c *gin.Context) {
	if h.cfg.ServiceAPIKey == "" {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}
	provided := c.GetHeader("X-Service-Key")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.cfg.ServiceAPIKey)) != 1 {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	var req TokenExchangeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, err := h.authService.GenerateLearnerToken(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrSessionAlreadyActive) {
			response.Fail(c, http.StatusConflict, response.ErrSessionActive)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"token": token})
}

// Logout godoc
// POST /api/v1/auth/logout
// Invalidates the learner's active session so a new device can sign in.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.InvalidateLearnerSession(c.Request.Context(), claims.UserID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "logged_out"})
}
