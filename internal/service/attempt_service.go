package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certilearn/certilearn-backend/internal/collaborator"
	"github.com/certilearn/certilearn-backend/internal/config"
	"github.com/certilearn/certilearn-backend/internal/model"
	"github.com/certilearn/certilearn-backend/internal/repository"
)

// ErrCooldownActive carries the blocking window back to the handler.
type ErrCooldownActive struct {
	Window *model.CooldownWindow
}

func (e *ErrCooldownActive) Error() string {
	return "retake cooldown is active"
}

// AttemptService creates attempts: it consults the cooldown gate, requests
// test content from the generation collaborator, normalizes it, and records
// the new attempt.
type AttemptService struct {
	attemptRepo   *repository.AttemptRepository
	violationRepo *repository.ViolationRepository
	cooldown      *CooldownService
	generator     collaborator.Generator
	rdb           *redis.Client
	log           zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	violationRepo *repository.ViolationRepository,
	cooldown *CooldownService,
	generator collaborator.Generator,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo:   attemptRepo,
		violationRepo: violationRepo,
		cooldown:      cooldown,
		generator:     generator,
		rdb:           rdb,
		log:           log.With().Str("component", "attempt_service").Logger(),
	}
}

// CreateAttempt starts a new attempt for (courseID, actor).
//
// Idempotency: an existing in-progress attempt is returned as-is — the
// learner resumes it instead of opening a second one, which also satisfies
// the one-in-progress-attempt-per-course invariant. The cooldown gate is
// consulted only when an actually new attempt would be created.
func (s *AttemptService) CreateAttempt(ctx context.Context, courseID string, userID int) (*model.Attempt, error) {
	existing, err := s.attemptRepo.GetInProgress(ctx, courseID, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}
	if existing != nil {
		existing.NormalizeQuestions()
		return existing, nil
	}

	window, err := s.cooldown.CanStartNewAttempt(ctx, courseID, userID)
	if err != nil {
		return nil, fmt.Errorf("cooldown gate: %w", err)
	}
	if window.Active {
		return nil, &ErrCooldownActive{Window: window}
	}

	test, err := s.generator.GenerateTest(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("generate test: %w", err)
	}

	attempt := &model.Attempt{
		CourseID:         courseID,
		UserID:           userID,
		Questions:        test.Questions,
		TimeLimitMinutes: test.TimeLimit,
		PassingScore:     test.PassingScore,
		TotalMarks:       test.TotalMarks,
		Status:           model.AttemptStatusInProgress,
	}
	if attempt.TotalMarks == 0 {
		for _, q := range attempt.Questions {
			attempt.TotalMarks += q.Marks
		}
	}

	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent create lost against the partial unique index.
			existing, fetchErr := s.attemptRepo.GetInProgress(ctx, courseID, userID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent create detected, but fetch failed: %w", fetchErr)
			}
			existing.NormalizeQuestions()
			return existing, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	// IDs are derived from the attempt ID, so normalization happens after
	// the insert assigned one. The canonical payload is what the session
	// and the grading hand-off will see.
	attempt.NormalizeQuestions()

	// Cache the start time so remaining-time computations survive restarts.
	startKey := config.CacheKey.AttemptStartKey(attempt.ID.String())
	if err := s.rdb.Set(ctx, startKey, attempt.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Start time cache failed")
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("course_id", courseID).
		Int("user_id", userID).
		Int("questions", len(attempt.Questions)).
		Msg("Attempt created")

	return attempt, nil
}

// ListForUser returns the learner's attempts across courses, newest first.
func (s *AttemptService) ListForUser(ctx context.Context, userID int) ([]model.Attempt, error) {
	attempts, err := s.attemptRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// ListViolations returns the audited integrity events of the learner's own
// attempt. Requests for someone else's attempt answer ErrAccessDenied.
func (s *AttemptService) ListViolations(ctx context.Context, attemptID uuid.UUID, userID int) ([]repository.ViolationRecord, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	if attempt.UserID != userID {
		return nil, ErrAccessDenied
	}

	records, err := s.violationRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	return records, nil
}
