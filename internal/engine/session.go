package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/certilearn/certilearn-backend/internal/model"
)

// State enumerates the session lifecycle.
type State string

const (
	StateLoading    State = "LOADING"
	StateValidating State = "VALIDATING"
	StateActive     State = "ACTIVE"
	StateSubmitting State = "SUBMITTING"
	StateTerminated State = "TERMINATED"
	StateDenied     State = "DENIED"
)

// AnswerStore is the durable, per-attempt key-value persistence of
// in-progress answers. Writes are per-question-key; last write wins.
type AnswerStore interface {
	Get(ctx context.Context, attemptID uuid.UUID) (map[string]string, error)
	Put(ctx context.Context, attemptID uuid.UUID, questionID, value string) error
	Clear(ctx context.Context, attemptID uuid.UUID) error
}

// Grader receives the positional answers sequence exactly once per attempt.
// Implementations hand off to the grading collaborator; the engine never
// reads a score back.
type Grader interface {
	Submit(ctx context.Context, courseID string, attemptID uuid.UUID, answers []*string) error
}

// Notifier pushes engine events (warning, submitted) to the UI layer.
type Notifier interface {
	Notify(attemptID uuid.UUID, ev Event)
}

// ViolationSink records each counted violation for audit. Recording is
// best-effort and must not block the escalation policy.
type ViolationSink interface {
	Record(ctx context.Context, attemptID uuid.UUID, signal Signal, count int)
}

// Session is the state machine governing one exam attempt: question
// navigation, answer mutation, violation escalation, and the at-most-once
// submission transition. One live Session exists per in-progress attempt;
// it is constructed after access validation and torn down at any terminal
// state. All inputs are serialized by a single mutex, mirroring the
// one-event-at-a-time model the attempt runs under.
type Session struct {
	mu sync.Mutex

	attempt    *model.Attempt
	answers    map[uuid.UUID]string
	questions  map[uuid.UUID]struct{}
	current    int
	violations int
	state      State

	store     AnswerStore
	grader    Grader
	notifier  Notifier
	sink      ViolationSink
	countdown *Countdown

	onTerminal func(*Session)
	log        zerolog.Logger
}

// SessionParams carries everything a hydrated session needs.
type SessionParams struct {
	Attempt *model.Attempt
	// SavedAnswers is the record hydrated from the AnswerStore on resume,
	// keyed by question ID string. Unknown keys are dropped.
	SavedAnswers map[string]string
	// RemainingSeconds seeds the countdown.
	RemainingSeconds int

	Store    AnswerStore
	Grader   Grader
	Notifier Notifier
	Sink     ViolationSink

	// OnTerminal runs once when the session reaches Terminated, after the
	// countdown is stopped. Used by the registry to drop the live session.
	OnTerminal func(*Session)
	Logger     zerolog.Logger
}

// NewSession hydrates a session into Active. The caller must have passed
// access validation first.
func NewSession(p SessionParams) *Session {
	s := &Session{
		attempt:    p.Attempt,
		answers:    make(map[uuid.UUID]string, len(p.SavedAnswers)),
		questions:  make(map[uuid.UUID]struct{}, len(p.Attempt.Questions)),
		state:      StateActive,
		store:      p.Store,
		grader:     p.Grader,
		notifier:   p.Notifier,
		sink:       p.Sink,
		onTerminal: p.OnTerminal,
		log: p.Logger.With().
			Str("component", "session").
			Str("attempt_id", p.Attempt.ID.String()).
			Logger(),
	}

	for i := range p.Attempt.Questions {
		s.questions[p.Attempt.Questions[i].ID] = struct{}{}
	}
	for k, v := range p.SavedAnswers {
		qid, err := uuid.Parse(k)
		if err != nil {
			continue
		}
		if _, ok := s.questions[qid]; ok {
			s.answers[qid] = v
		}
	}

	s.countdown = NewCountdown(p.RemainingSeconds, func() {
		if err := s.Submit(context.Background(), TriggerTimeout); err != nil {
			s.log.Error().Err(err).Msg("Timeout submission failed")
		}
	})

	return s
}

// StartCountdown begins the attempt clock. Call once, after registration.
func (s *Session) StartCountdown() {
	s.countdown.Start()
}

// Attempt returns the immutable attempt this session governs.
func (s *Session) Attempt() *model.Attempt {
	return s.attempt
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Violations returns the running violation count.
func (s *Session) Violations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations
}

// Remaining returns the seconds left on the attempt clock.
func (s *Session) Remaining() int {
	return s.countdown.Remaining()
}

// CurrentIndex returns the question index the session is focused on.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Goto moves focus to the question at index, clamped to the valid range.
// Navigation is pure: no side effect beyond the focus change.
func (s *Session) Goto(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 {
		index = 0
	}
	if max := len(s.attempt.Questions) - 1; index > max {
		index = max
	}
	s.current = index
	return s.current
}

// SetAnswer records an answer for a question and persists it to the store.
// The value is opaque to the engine (free text, selected choice, or source
// code). Only accepted while Active.
func (s *Session) SetAnswer(ctx context.Context, questionID uuid.UUID, value string) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	if _, ok := s.questions[questionID]; !ok {
		s.mu.Unlock()
		return ErrUnknownQuestion
	}
	s.answers[questionID] = value
	s.mu.Unlock()

	if err := s.store.Put(ctx, s.attempt.ID, questionID.String(), value); err != nil {
		return fmt.Errorf("persist answer: %w", err)
	}
	return nil
}

// Answers returns a copy of the in-memory answer record.
func (s *Session) Answers() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		out[k.String()] = v
	}
	return out
}

// HandleSignal routes one environment signal through the integrity policy:
// the first violation in the attempt's lifetime yields a non-terminal
// warning; the second and every subsequent one triggers the terminal
// auto-submit. Page unload bypasses the counter entirely. Signals arriving
// outside Active are ignored, so spurious events around mount/teardown
// never fire the monitor.
func (s *Session) HandleSignal(ctx context.Context, sig Signal) {
	if sig == SignalPageUnload {
		if err := s.Submit(ctx, TriggerTeardown); err != nil {
			s.log.Error().Err(err).Msg("Teardown submission failed")
		}
		return
	}
	if !sig.IsViolation() {
		return
	}

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.violations++
	count := s.violations
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Record(ctx, s.attempt.ID, sig, count)
	}

	if count == 1 {
		s.log.Warn().Str("signal", string(sig)).Msg("First violation, warning issued")
		s.notifier.Notify(s.attempt.ID, Event{Kind: EventWarning, Violations: count})
		return
	}

	s.log.Warn().
		Str("signal", string(sig)).
		Int("violations", count).
		Msg("Repeat violation, forcing submission")
	if err := s.Submit(ctx, TriggerViolation); err != nil {
		s.log.Error().Err(err).Msg("Violation submission failed")
	}
}

// Submit performs the terminal transition out of Active. The submission
// in-flight guard is taken synchronously under the lock before any I/O, so
// a second trigger arriving before the dispatch resolves is rejected rather
// than queued: exactly one submission is dispatched per attempt.
//
// A user-initiated submit that fails returns the error and puts the session
// back in Active for a retry. A forced submit never recovers — the failure
// is logged and the session terminates regardless, because the triggering
// context (tab closing, integrity breach, expired clock) cannot guarantee a
// retry window.
func (s *Session) Submit(ctx context.Context, trigger Trigger) error {
	s.mu.Lock()
	switch s.state {
	case StateActive:
		// proceed
	case StateSubmitting:
		s.mu.Unlock()
		if trigger.Forced() {
			return nil
		}
		return ErrSubmissionInFlight
	default:
		s.mu.Unlock()
		if trigger.Forced() {
			return nil
		}
		return ErrNotActive
	}
	s.state = StateSubmitting
	answers := s.positionalAnswers()
	s.mu.Unlock()

	err := s.grader.Submit(ctx, s.attempt.CourseID, s.attempt.ID, answers)

	// The store is cleared once the dispatch has happened, success or not,
	// so stale answers never bleed into a later attempt with a reused
	// identifier. The in-memory record stays intact for a retry.
	if clearErr := s.store.Clear(ctx, s.attempt.ID); clearErr != nil {
		s.log.Error().Err(clearErr).Msg("Answer store clear failed")
	}

	if err != nil && !errors.Is(err, ErrAlreadySubmitted) {
		if !trigger.Forced() {
			s.mu.Lock()
			s.state = StateActive
			s.mu.Unlock()
			return fmt.Errorf("submit attempt: %w", err)
		}
		s.log.Error().
			Err(err).
			Str("trigger", string(trigger)).
			Msg("Forced submission dispatch failed")
	}

	s.terminate(trigger)
	return nil
}

// terminate moves the session into Terminated, stops the clock, announces
// the hand-off to the UI layer, and releases the registry slot.
func (s *Session) terminate(trigger Trigger) {
	s.mu.Lock()
	s.state = StateTerminated
	s.mu.Unlock()

	s.countdown.Stop()
	s.notifier.Notify(s.attempt.ID, Event{Kind: EventSubmitted, Trigger: trigger})
	if s.onTerminal != nil {
		s.onTerminal(s)
	}

	s.log.Info().Str("trigger", string(trigger)).Msg("Session terminated")
}

// Close stops the countdown without submitting. Used only on process
// shutdown; the attempt stays in_progress and is resumable.
func (s *Session) Close() {
	s.countdown.Stop()
}

// positionalAnswers builds the ordered submission sequence: one slot per
// question in original order, the recorded value or nil when unanswered.
// Slots are never omitted, preserving position-to-question correspondence
// for the grading service. Caller must hold s.mu.
func (s *Session) positionalAnswers() []*string {
	out := make([]*string, len(s.attempt.Questions))
	for i := range s.attempt.Questions {
		if v, ok := s.answers[s.attempt.Questions[i].ID]; ok {
			val := v
			out[i] = &val
		}
	}
	return out
}
