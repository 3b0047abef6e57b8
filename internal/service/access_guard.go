package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/certilearn/certilearn-backend/internal/engine"
	"github.com/certilearn/certilearn-backend/internal/model"
)

// Access guard errors.
var (
	// ErrAccessDenied is terminal for the session: the caller must not
	// construct any session state after receiving it.
	ErrAccessDenied = errors.New("access to this attempt is denied")
)

// AttemptReader is the slice of the attempt repository the guard needs.
type AttemptReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
}

// AccessGuard validates, before any session state is created, that the
// current actor may start or resume a specific attempt. The check runs
// once, synchronously, before hydration; actions within an established
// session are not re-checked (single actor, single device).
type AccessGuard struct {
	attempts AttemptReader
	store    engine.AnswerStore
	log      zerolog.Logger
}

// NewAccessGuard creates a new AccessGuard.
func NewAccessGuard(attempts AttemptReader, store engine.AnswerStore, log zerolog.Logger) *AccessGuard {
	return &AccessGuard{
		attempts: attempts,
		store:    store,
		log:      log.With().Str("component", "access_guard").Logger(),
	}
}

// Validate authorizes (courseID, attemptID, actor) and returns the attempt
// on success. Denial purges any stale saved answers for the attempt
// identifier, so a denied attempt's leftovers can never leak into a later,
// different attempt reusing the same identifier.
func (g *AccessGuard) Validate(ctx context.Context, courseID string, attemptID uuid.UUID, userID int) (*model.Attempt, error) {
	if courseID == "" || attemptID == uuid.Nil {
		return nil, g.deny(ctx, attemptID, "empty identifiers")
	}

	attempt, err := g.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, g.deny(ctx, attemptID, "attempt not found")
	}

	if attempt.CourseID != courseID {
		return nil, g.deny(ctx, attemptID, "attempt does not belong to course")
	}
	if attempt.UserID != userID {
		return nil, g.deny(ctx, attemptID, "actor does not own attempt")
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, g.deny(ctx, attemptID, "attempt is not resumable")
	}

	return attempt, nil
}

func (g *AccessGuard) deny(ctx context.Context, attemptID uuid.UUID, reason string) error {
	if attemptID != uuid.Nil {
		if err := g.store.Clear(ctx, attemptID); err != nil {
			g.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Stale answer purge failed")
		}
	}
	g.log.Warn().Str("attempt_id", attemptID.String()).Str("reason", reason).Msg("Access denied")
	return ErrAccessDenied
}
