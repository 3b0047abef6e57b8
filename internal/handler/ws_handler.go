package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/certilearn/certilearn-backend/internal/engine"
	"github.com/certilearn/certilearn-backend/internal/middleware"
	"github.com/certilearn/certilearn-backend/internal/model"
	"github.com/certilearn/certilearn-backend/internal/service"
	ws "github.com/certilearn/certilearn-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler carries a learner's live test session over a WebSocket.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/courses/:course_id/attempts/:attempt_id/stream
// Mounts (or remounts) the attempt's session and streams answer edits,
// environment signals, and engine events until the session terminates.
// Dropping the socket does NOT submit; an explicit teardown action does.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	courseID := c.Param("course_id")
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	sess, err := h.sessionService.StartOrResume(c.Request.Context(), courseID, attemptID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrAccessDenied) {
			conn.WriteError("access to this attempt is denied")
		} else {
			conn.WriteError("failed to mount session")
		}
		return
	}

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Learner connected")

	// Last device wins: a remount replaces any earlier subscription.
	events := h.sessionService.Subscribe(attemptID)
	defer h.sessionService.Unsubscribe(attemptID)

	conn.WriteTyped(ws.StateResponse{
		Event: ws.EventState,
		State: model.AttemptState{
			AttemptID:        attemptID,
			CourseID:         courseID,
			SavedAnswers:     sess.Answers(),
			RemainingSeconds: sess.Remaining(),
		},
	})

	done := make(chan struct{})
	defer close(done)
	go h.forwardEvents(conn, wsLog, events, done)

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, sess, &msg)
		case ws.ActionGoto:
			conn.WriteTyped(ws.CursorResponse{Event: ws.EventCursor, Index: sess.Goto(msg.Index)})
		case ws.ActionSignal:
			h.handleSignal(conn, sess, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, sess, engine.TriggerUser)
		case ws.ActionTeardown:
			// The page is going away. Submit unconditionally; the closing
			// socket cannot carry a meaningful reply anyway.
			h.handleSubmit(conn, wsLog, sess, engine.TriggerTeardown)
			return
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: "+string(msg.Action))
		}
	}
}

// forwardEvents pushes engine events to the client until the session
// terminates or the connection goes away. A submitted event also closes
// the connection so the read loop unblocks.
func (h *WSHandler) forwardEvents(conn *ws.Conn, wsLog zerolog.Logger, events <-chan engine.Event, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev := <-events:
			switch ev.Kind {
			case engine.EventWarning:
				conn.WriteTyped(ws.WarningResponse{Event: ws.EventWarning, Count: ev.Violations})
			case engine.EventSubmitted:
				conn.WriteTyped(ws.SubmittedResponse{
					Event:  ws.EventSubmitted,
					Forced: ev.Trigger.Forced(),
					Reason: string(ev.Trigger),
				})
				wsLog.Info().Str("trigger", string(ev.Trigger)).Msg("Session terminated")
				conn.Close()
				return
			}
		}
	}
}

func (h *WSHandler) handleAnswer(conn *ws.Conn, sess *engine.Session, msg *ws.RequestPayload) {
	if msg.QuestionID == "" {
		conn.WriteError("question_id is required")
		return
	}
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		conn.WriteError("invalid question_id format")
		return
	}

	if err := sess.SetAnswer(context.Background(), questionID, msg.Answer); err != nil {
		switch {
		case errors.Is(err, engine.ErrUnknownQuestion):
			conn.WriteError("question does not belong to this attempt")
		case errors.Is(err, engine.ErrNotActive):
			conn.WriteError("session is not active")
		default:
			conn.WriteError("save failed")
		}
		return
	}

	conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, QuestionID: msg.QuestionID})
}

func (h *WSHandler) handleSignal(conn *ws.Conn, sess *engine.Session, msg *ws.RequestPayload) {
	sig, ok := engine.ParseSignal(msg.Signal)
	if !ok {
		conn.WriteError("unknown signal: "+msg.Signal)
		return
	}
	// Reactions (warning, forced submit) come back through engine events.
	sess.HandleSignal(context.Background(), sig)
}

func (h *WSHandler) handleSubmit(conn *ws.Conn, wsLog zerolog.Logger, sess *engine.Session, trigger engine.Trigger) {
	if err := sess.Submit(context.Background(), trigger); err != nil {
		switch {
		case errors.Is(err, engine.ErrSubmissionInFlight):
			conn.WriteError("submission already in progress")
		case errors.Is(err, engine.ErrNotActive):
			conn.WriteError("session is not active")
		default:
			wsLog.Error().Err(err).Msg("Submission failed")
			conn.WriteError("submission failed, please try again")
		}
	}
	// Success is announced by the engine's submitted event.
}
