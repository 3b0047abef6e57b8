package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certilearn/certilearn-backend/internal/config"
	"github.com/certilearn/certilearn-backend/internal/engine"
)

// RedisViolationSink queues counted violations for batch persistence by the
// violation worker. Recording is best-effort: a Redis outage must never
// block the escalation policy.
type RedisViolationSink struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisViolationSink creates a RedisViolationSink.
func NewRedisViolationSink(rdb *redis.Client, log zerolog.Logger) *RedisViolationSink {
	return &RedisViolationSink{
		rdb: rdb,
		log: log.With().Str("component", "violation_sink").Logger(),
	}
}

// Record pushes one violation event onto the persistence queue.
func (s *RedisViolationSink) Record(ctx context.Context, attemptID uuid.UUID, signal engine.Signal, count int) {
	payload, _ := json.Marshal(map[string]interface{}{
		"attempt_id": attemptID.String(),
		"signal":     string(signal),
		"count":      count,
		"timestamp":  time.Now().Unix(),
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Violation enqueue failed")
	}
}
