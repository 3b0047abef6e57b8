package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/certilearn/certilearn-backend/internal/middleware"
	"github.com/certilearn/certilearn-backend/internal/response"
	"github.com/certilearn/certilearn-backend/internal/service"
)

// AttemptHandler handles attempt lifecycle endpoints for learners.
type AttemptHandler struct {
	attemptService *service.AttemptService
	sessionService *service.SessionService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, sessionService *service.SessionService) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		sessionService: sessionService,
	}
}

// CreateAttempt godoc
// POST /api/v1/courses/:course_id/attempts
// Starts a new attempt, or returns the existing in-progress one. A denied
// retake cooldown answers 409 with the remaining window.
func (h *AttemptHandler) CreateAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	courseID := c.Param("course_id")
	if courseID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.CreateAttempt(c.Request.Context(), courseID, claims.UserID)
	if err != nil {
		var cooldown *service.ErrCooldownActive
		if errors.As(err, &cooldown) {
			response.FailWithData(c, http.StatusConflict, response.ErrCooldownActive, gin.H{
				"cooldown": cooldown.Window,
			})
			return
		}
		response.Fail(c, http.StatusBadGateway, response.ErrGenerationFailed)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": attempt})
}

// CheckAccess godoc
// GET /api/v1/courses/:course_id/attempts/:attempt_id/access
// Runs the access guard without mounting a session, so the client can fail
// fast before loading the test UI.
func (h *AttemptHandler) CheckAccess(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	courseID := c.Param("course_id")
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if _, err := h.sessionService.ValidateAccess(c.Request.Context(), courseID, attemptID, claims.UserID); err != nil {
		if errors.Is(err, service.ErrAccessDenied) {
			response.Fail(c, http.StatusForbidden, response.ErrAccessDenied)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"access": "granted"})
}

// GetState godoc
// GET /api/v1/courses/:course_id/attempts/:attempt_id/state
// Returns the resume payload: saved answers plus authoritative remaining
// time. Used after a reload, before the WebSocket remounts the session.
func (h *AttemptHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	courseID := c.Param("course_id")
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessionService.GetState(c.Request.Context(), courseID, attemptID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrAccessDenied) {
			response.Fail(c, http.StatusForbidden, response.ErrAccessDenied)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// ListViolations godoc
// GET /api/v1/attempts/:attempt_id/violations
// Returns the integrity events recorded against the learner's own attempt.
func (h *AttemptHandler) ListViolations(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	records, err := h.attemptService.ListViolations(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrAccessDenied) {
			response.Fail(c, http.StatusForbidden, response.ErrAccessDenied)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"violations": records})
}

// ListAttempts godoc
// GET /api/v1/attempts
// Lists the learner's past attempts across courses.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.attemptService.ListForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}
