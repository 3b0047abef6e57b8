package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certilearn/certilearn-backend/internal/model"
)

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new attempt. The partial unique index on
// (course_id, user_id) WHERE status = 'in_progress' enforces the single
// in-progress attempt invariant; a conflicting insert returns no row.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	questions, err := json.Marshal(a.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (course_id, user_id, questions, time_limit_minutes, passing_score, total_marks, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING
		 RETURNING id, created_at, started_at`,
		a.CourseID, a.UserID, questions, a.TimeLimitMinutes, a.PassingScore, a.TotalMarks,
		model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.CreatedAt, &a.StartedAt)
}

// GetByID retrieves an attempt with its question payload.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	var questions []byte

	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, user_id, questions, time_limit_minutes, passing_score, total_marks,
		        status, final_score, created_at, started_at, finished_at
		 FROM attempts
		 WHERE id = $1`, id,
	).Scan(&a.ID, &a.CourseID, &a.UserID, &questions, &a.TimeLimitMinutes, &a.PassingScore,
		&a.TotalMarks, &a.Status, &a.FinalScore, &a.CreatedAt, &a.StartedAt, &a.FinishedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(questions, &a.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return a, nil
}

// GetInProgress retrieves the learner's in-progress attempt on a course, if any.
func (r *AttemptRepository) GetInProgress(ctx context.Context, courseID string, userID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	var questions []byte

	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, user_id, questions, time_limit_minutes, passing_score, total_marks,
		        status, final_score, created_at, started_at, finished_at
		 FROM attempts
		 WHERE course_id = $1 AND user_id = $2 AND status = $3`,
		courseID, userID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.CourseID, &a.UserID, &questions, &a.TimeLimitMinutes, &a.PassingScore,
		&a.TotalMarks, &a.Status, &a.FinalScore, &a.CreatedAt, &a.StartedAt, &a.FinishedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(questions, &a.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return a, nil
}

// MarkProcessing transitions an attempt out of in_progress. The conditional
// UPDATE makes the transition idempotent at the database level: the first
// caller wins, every later caller sees zero rows.
func (r *AttemptRepository) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, finished_at = $2
		 WHERE id = $3 AND status = $4`,
		model.AttemptStatusProcessing, now, id, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RevertProcessing undoes a won MarkProcessing when the submission could
// not be enqueued, so a later retry can win the transition again.
func (r *AttemptRepository) RevertProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, finished_at = NULL
		 WHERE id = $2 AND status = $3`,
		model.AttemptStatusInProgress, id, model.AttemptStatusProcessing)
	return err
}

// MarkCompleted closes a processing attempt after the grading hand-off
// succeeded. The score columns are filled later by the grading pipeline.
func (r *AttemptRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1
		 WHERE id = $2 AND status = $3`,
		model.AttemptStatusCompleted, id, model.AttemptStatusProcessing)
	return err
}

// LatestTerminal returns the finish time of the learner's most recent
// non-in-progress attempt on a course. Used by the cooldown gate.
func (r *AttemptRepository) LatestTerminal(ctx context.Context, courseID string, userID int) (time.Time, error) {
	var finishedAt time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT finished_at
		 FROM attempts
		 WHERE course_id = $1 AND user_id = $2 AND status <> $3 AND finished_at IS NOT NULL
		 ORDER BY finished_at DESC
		 LIMIT 1`,
		courseID, userID, model.AttemptStatusInProgress,
	).Scan(&finishedAt)
	if err != nil {
		return time.Time{}, err
	}
	return finishedAt, nil
}

// ListByUser retrieves all attempts of a learner, most recent first.
// The question payload is omitted; this feeds listing views only.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, course_id, user_id, time_limit_minutes, passing_score, total_marks,
		        status, final_score, created_at, started_at, finished_at
		 FROM attempts
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.CourseID, &a.UserID, &a.TimeLimitMinutes, &a.PassingScore,
			&a.TotalMarks, &a.Status, &a.FinalScore, &a.CreatedAt, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
