package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certilearn/certilearn-backend/internal/config"
	"github.com/certilearn/certilearn-backend/internal/engine"
	"github.com/certilearn/certilearn-backend/internal/model"
)

// SessionService owns the live sessions: one engine.Session per in-progress
// attempt, created after the access guard passes and dropped at any
// terminal state. It also fans engine events out to the transport layer.
type SessionService struct {
	mu   sync.Mutex
	live map[uuid.UUID]*engine.Session
	subs map[uuid.UUID]chan engine.Event

	guard  *AccessGuard
	store  engine.AnswerStore
	grader engine.Grader
	sink   engine.ViolationSink
	rdb    *redis.Client
	cfg    *config.Config
	log    zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	guard *AccessGuard,
	store engine.AnswerStore,
	grader engine.Grader,
	sink engine.ViolationSink,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		live:   make(map[uuid.UUID]*engine.Session),
		subs:   make(map[uuid.UUID]chan engine.Event),
		guard:  guard,
		store:  store,
		grader: grader,
		sink:   sink,
		rdb:    rdb,
		cfg:    cfg,
		log:    log.With().Str("component", "session_service").Logger(),
	}
}

// Notify implements engine.Notifier: events are forwarded to the attempt's
// subscriber, if any. Delivery is non-blocking; a slow consumer drops
// events rather than stalling the engine.
func (s *SessionService) Notify(attemptID uuid.UUID, ev engine.Event) {
	s.mu.Lock()
	ch := s.subs[attemptID]
	s.mu.Unlock()

	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
		s.log.Warn().Str("attempt_id", attemptID.String()).Msg("Event dropped, slow subscriber")
	}
}

// Subscribe returns the event channel for an attempt's UI connection.
// A new subscription replaces the previous one (last device wins).
func (s *SessionService) Subscribe(attemptID uuid.UUID) <-chan engine.Event {
	ch := make(chan engine.Event, 8)
	s.mu.Lock()
	s.subs[attemptID] = ch
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes the attempt's event channel.
func (s *SessionService) Unsubscribe(attemptID uuid.UUID) {
	s.mu.Lock()
	delete(s.subs, attemptID)
	s.mu.Unlock()
}

// StartOrResume validates access and returns the attempt's live session,
// creating and hydrating one if this is the first mount (or a remount after
// reload). The access guard runs once, before any session state exists.
func (s *SessionService) StartOrResume(ctx context.Context, courseID string, attemptID uuid.UUID, userID int) (*engine.Session, error) {
	attempt, err := s.guard.Validate(ctx, courseID, attemptID, userID)
	if err != nil {
		return nil, err
	}
	attempt.NormalizeQuestions()

	s.mu.Lock()
	if sess, ok := s.live[attemptID]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	saved, err := s.store.Get(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("hydrate answers: %w", err)
	}

	sess := engine.NewSession(engine.SessionParams{
		Attempt:          attempt,
		SavedAnswers:     saved,
		RemainingSeconds: s.remainingSeconds(ctx, attempt),
		Store:            s.store,
		Grader:           s.grader,
		Notifier:         s,
		Sink:             s.sink,
		OnTerminal:       s.release,
		Logger:           s.log,
	})

	s.mu.Lock()
	if existing, ok := s.live[attemptID]; ok {
		// Concurrent mount lost the race; use the winner.
		s.mu.Unlock()
		sess.Close()
		return existing, nil
	}
	s.live[attemptID] = sess
	s.mu.Unlock()

	sess.StartCountdown()

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("saved_answers", len(saved)).
		Int("remaining_seconds", sess.Remaining()).
		Msg("Session hydrated")

	return sess, nil
}

// ValidateAccess runs the access guard without mounting a session.
func (s *SessionService) ValidateAccess(ctx context.Context, courseID string, attemptID uuid.UUID, userID int) (*model.Attempt, error) {
	return s.guard.Validate(ctx, courseID, attemptID, userID)
}

// Get returns the live session for an attempt, or nil when none exists.
// Signals arriving for an absent session are the caller's cue to ignore them.
func (s *SessionService) Get(attemptID uuid.UUID) *engine.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[attemptID]
}

// GetState builds the resume payload for a reloading client: saved answers
// plus the authoritative remaining time. Works with or without a live
// session in this process.
func (s *SessionService) GetState(ctx context.Context, courseID string, attemptID uuid.UUID, userID int) (*model.AttemptState, error) {
	attempt, err := s.guard.Validate(ctx, courseID, attemptID, userID)
	if err != nil {
		return nil, err
	}

	state := &model.AttemptState{
		AttemptID: attemptID,
		CourseID:  courseID,
	}

	if sess := s.Get(attemptID); sess != nil {
		state.SavedAnswers = sess.Answers()
		state.RemainingSeconds = sess.Remaining()
		return state, nil
	}

	saved, err := s.store.Get(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("read saved answers: %w", err)
	}
	state.SavedAnswers = saved
	state.RemainingSeconds = s.remainingSeconds(ctx, attempt)
	return state, nil
}

// Shutdown stops the countdowns of all live sessions without submitting;
// in-progress attempts stay resumable after a restart.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.live {
		sess.Close()
	}
	s.live = make(map[uuid.UUID]*engine.Session)
}

// release drops a terminated session from the registry.
func (s *SessionService) release(sess *engine.Session) {
	s.mu.Lock()
	delete(s.live, sess.Attempt().ID)
	s.mu.Unlock()
}

// remainingSeconds seeds the countdown for a mounting session. The default
// policy grants the full duration on every mount; with ResumeConsumesTime
// the remainder is computed against the cached attempt start, falling back
// to the attempt row when the cache was evicted.
func (s *SessionService) remainingSeconds(ctx context.Context, attempt *model.Attempt) int {
	full := attempt.TimeLimitMinutes * 60
	if !s.cfg.ResumeConsumesTime {
		return full
	}

	startUnix := attempt.StartedAt.Unix()
	startKey := config.CacheKey.AttemptStartKey(attempt.ID.String())

	val, err := s.rdb.Get(ctx, startKey).Result()
	switch {
	case err == nil:
		if parsed, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
			startUnix = parsed
		}
	case errors.Is(err, redis.Nil):
		// Self-heal so the next mount is fast.
		_ = s.rdb.Set(ctx, startKey, startUnix, 0)
	default:
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Start time cache read failed")
	}

	endTime := time.Unix(startUnix, 0).Add(time.Duration(attempt.TimeLimitMinutes) * time.Minute)
	remaining := int(time.Until(endTime).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	if remaining > full {
		remaining = full
	}
	return remaining
}
