package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certilearn/certilearn-backend/internal/collaborator"
	"github.com/certilearn/certilearn-backend/internal/config"
	"github.com/certilearn/certilearn-backend/internal/repository"
	"github.com/certilearn/certilearn-backend/internal/service"
)

// SubmissionWorker delivers queued submissions to the grading service.
// One delivery attempt per submission: the grading hand-off is fire and
// forget, and a failed delivery is an operator problem, not a learner one.
type SubmissionWorker struct {
	grading  *collaborator.GradingClient
	attempts *repository.AttemptRepository
	answers  *repository.AnswerRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewSubmissionWorker creates a new SubmissionWorker.
func NewSubmissionWorker(grading *collaborator.GradingClient, attempts *repository.AttemptRepository, answers *repository.AnswerRepository, rdb *redis.Client, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		grading:  grading,
		attempts: attempts,
		answers:  answers,
		rdb:      rdb,
		log:      log.With().Str("component", "submission_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SubmissionWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.SubmissionsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload service.SubmissionPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
		return
	}

	w.deliver(ctx, &payload)
}

func (w *SubmissionWorker) deliver(ctx context.Context, p *service.SubmissionPayload) {
	wLog := w.log.With().
		Str("attempt_id", p.AttemptID).
		Str("course_id", p.CourseID).
		Logger()

	if err := w.grading.SubmitTest(ctx, p.CourseID, p.AttemptID, p.Answers); err != nil {
		// The attempt stays in processing. Operators reconcile stranded
		// submissions; a duplicate delivery is worse than a late one.
		wLog.Error().Err(err).Msg("Grading delivery failed")
		return
	}

	attemptID, err := uuid.Parse(p.AttemptID)
	if err != nil {
		wLog.Error().Err(err).Msg("Invalid attempt ID in payload")
		return
	}
	if err := w.attempts.MarkCompleted(ctx, attemptID); err != nil {
		wLog.Error().Err(err).Msg("Mark completed failed")
		return
	}

	// The positional sequence is now with the grading service; the staged
	// per-question copies have served their purpose.
	if err := w.answers.DeleteByAttempt(ctx, attemptID); err != nil {
		wLog.Warn().Err(err).Msg("Staged answer cleanup failed")
	}

	wLog.Info().Int("answers", len(p.Answers)).Msg("Submission delivered")
}
