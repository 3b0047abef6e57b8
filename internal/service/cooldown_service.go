package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/certilearn/certilearn-backend/internal/model"
)

// TerminalAttemptReader is the slice of the attempt repository the gate needs.
type TerminalAttemptReader interface {
	LatestTerminal(ctx context.Context, courseID string, userID int) (time.Time, error)
}

// CooldownService is the gate consulted when a new attempt is requested
// after a prior terminal attempt on the same course. It reports a snapshot;
// it runs no timer of its own, and it is never consulted for resuming an
// existing in-progress attempt.
type CooldownService struct {
	attempts TerminalAttemptReader
	window   time.Duration
	now      func() time.Time
}

// NewCooldownService creates a CooldownService with the configured retake window.
func NewCooldownService(attempts TerminalAttemptReader, window time.Duration) *CooldownService {
	return &CooldownService{
		attempts: attempts,
		window:   window,
		now:      time.Now,
	}
}

// CanStartNewAttempt returns the cooldown snapshot for (courseID, actor).
// Window.Active false means a new attempt may be created.
func (s *CooldownService) CanStartNewAttempt(ctx context.Context, courseID string, userID int) (*model.CooldownWindow, error) {
	finishedAt, err := s.attempts.LatestTerminal(ctx, courseID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.CooldownWindow{Active: false}, nil
		}
		return nil, fmt.Errorf("latest terminal attempt: %w", err)
	}

	nextAvailableAt := finishedAt.Add(s.window)
	remaining := nextAvailableAt.Sub(s.now())
	if remaining <= 0 {
		return &model.CooldownWindow{Active: false}, nil
	}

	return &model.CooldownWindow{
		Active:          true,
		RemainingMs:     remaining.Milliseconds(),
		NextAvailableAt: nextAvailableAt,
	}, nil
}
