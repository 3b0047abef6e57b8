package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certilearn/certilearn-backend/internal/config"
	"github.com/certilearn/certilearn-backend/internal/engine"
)

// AttemptMarker is the slice of the attempt repository the dispatcher needs.
type AttemptMarker interface {
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	RevertProcessing(ctx context.Context, id uuid.UUID) error
}

// submissionQueue is the slice of the Redis client the dispatcher needs.
type submissionQueue interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// SubmissionPayload is the queued hand-off consumed by the submission worker.
type SubmissionPayload struct {
	CourseID  string    `json:"course_id"`
	AttemptID string    `json:"attempt_id"`
	Answers   []*string `json:"answers"`
}

// SubmissionDispatcher is the production engine.Grader. It wins the
// attempt's status transition in PostgreSQL first — the conditional update
// is the durable exactly-once guard — then queues the positional answers
// for delivery to the grading service.
type SubmissionDispatcher struct {
	attempts AttemptMarker
	queue    submissionQueue
	log      zerolog.Logger
}

var _ engine.Grader = (*SubmissionDispatcher)(nil)

// NewSubmissionDispatcher creates a SubmissionDispatcher.
func NewSubmissionDispatcher(attempts AttemptMarker, rdb *redis.Client, log zerolog.Logger) *SubmissionDispatcher {
	return &SubmissionDispatcher{
		attempts: attempts,
		queue:    rdb,
		log:      log.With().Str("component", "submission_dispatcher").Logger(),
	}
}

// Submit transitions the attempt to processing and enqueues the submission.
// A failed enqueue reverts the transition before returning, so the attempt
// stays retryable instead of sitting in processing with nothing queued.
func (d *SubmissionDispatcher) Submit(ctx context.Context, courseID string, attemptID uuid.UUID, answers []*string) error {
	payload, err := json.Marshal(SubmissionPayload{
		CourseID:  courseID,
		AttemptID: attemptID.String(),
		Answers:   answers,
	})
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	won, err := d.attempts.MarkProcessing(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("mark attempt processing: %w", err)
	}
	if !won {
		return engine.ErrAlreadySubmitted
	}

	if err := d.queue.RPush(ctx, config.WorkerKey.SubmissionsQueue, payload).Err(); err != nil {
		d.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Submission enqueue failed")
		if revertErr := d.attempts.RevertProcessing(ctx, attemptID); revertErr != nil {
			// Stuck in processing with nothing queued; operator must requeue.
			d.log.Error().Err(revertErr).Str("attempt_id", attemptID.String()).Msg("Processing revert failed")
		}
		return fmt.Errorf("enqueue submission: %w", err)
	}

	d.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("slots", len(answers)).
		Msg("Submission dispatched")
	return nil
}
