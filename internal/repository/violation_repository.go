package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ViolationRecord is one audited integrity violation.
type ViolationRecord struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	Signal     string    `json:"signal"`
	Count      int       `json:"count"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ViolationRepository handles violation audit data access.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// BulkInsert writes a batch of violation records with COPY.
func (r *ViolationRepository) BulkInsert(ctx context.Context, batch []ViolationRecord) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, v := range batch {
		rows = append(rows, []interface{}{v.AttemptID, v.Signal, v.Count, v.RecordedAt})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"attempt_violations"},
		[]string{"attempt_id", "signal", "violation_count", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert writes a single violation record. Fallback path when a bulk
// insert fails.
func (r *ViolationRepository) Insert(ctx context.Context, v ViolationRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_violations (attempt_id, signal, violation_count, recorded_at)
		 VALUES ($1, $2, $3, $4)`,
		v.AttemptID, v.Signal, v.Count, v.RecordedAt,
	)
	return err
}

// ListByAttempt returns the audited violations of one attempt in order.
func (r *ViolationRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]ViolationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, signal, violation_count, recorded_at
		 FROM attempt_violations
		 WHERE attempt_id = $1
		 ORDER BY recorded_at ASC`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ViolationRecord
	for rows.Next() {
		var v ViolationRecord
		if err := rows.Scan(&v.AttemptID, &v.Signal, &v.Count, &v.RecordedAt); err != nil {
			return nil, err
		}
		records = append(records, v)
	}
	return records, rows.Err()
}
