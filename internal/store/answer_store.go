package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certilearn/certilearn-backend/internal/config"
)

// RedisAnswerStore keeps the in-progress answer record of each attempt in a
// Redis hash, so answers survive a page reload. Every write is additionally
// queued for write-behind persistence to PostgreSQL by the answer worker.
type RedisAnswerStore struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisAnswerStore creates a RedisAnswerStore.
func NewRedisAnswerStore(rdb *redis.Client, log zerolog.Logger) *RedisAnswerStore {
	return &RedisAnswerStore{
		rdb: rdb,
		log: log.With().Str("component", "answer_store").Logger(),
	}
}

// Get returns the saved answer record for an attempt, keyed by question ID.
// An attempt with no saved answers yields an empty map.
func (s *RedisAnswerStore) Get(ctx context.Context, attemptID uuid.UUID) (map[string]string, error) {
	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	answers, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get saved answers: %w", err)
	}
	return answers, nil
}

// Put saves one answer under its question key (last write wins) and queues
// it for durable persistence. The queue push is best-effort — the Redis
// hash is the source the session rehydrates from.
func (s *RedisAnswerStore) Put(ctx context.Context, attemptID uuid.UUID, questionID, value string) error {
	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	if err := s.rdb.HSet(ctx, key, questionID, value).Err(); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"attempt_id":  attemptID.String(),
		"question_id": questionID,
		"answer":      value,
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Answer persist enqueue failed")
	}
	return nil
}

// Clear drops the whole answer record for an attempt. Called exactly once
// after a submission is dispatched, and again when access to an attempt is
// denied.
func (s *RedisAnswerStore) Clear(ctx context.Context, attemptID uuid.UUID) error {
	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear saved answers: %w", err)
	}
	return nil
}
