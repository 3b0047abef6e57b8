package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certilearn/certilearn-backend/internal/model"
)

// ============================================================================
// In-memory fakes
// ============================================================================

type memStore struct {
	mu      sync.Mutex
	answers map[uuid.UUID]map[string]string
	cleared int
}

func newMemStore() *memStore {
	return &memStore{answers: make(map[uuid.UUID]map[string]string)}
}

func (s *memStore) Get(_ context.Context, attemptID uuid.UUID) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for k, v := range s.answers[attemptID] {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Put(_ context.Context, attemptID uuid.UUID, questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answers[attemptID] == nil {
		s.answers[attemptID] = make(map[string]string)
	}
	s.answers[attemptID][questionID] = value
	return nil
}

func (s *memStore) Clear(_ context.Context, attemptID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answers, attemptID)
	s.cleared++
	return nil
}

type fakeGrader struct {
	mu      sync.Mutex
	calls   int
	lastSeq []*string
	err     error
}

func (g *fakeGrader) Submit(_ context.Context, _ string, _ uuid.UUID, answers []*string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastSeq = answers
	return g.err
}

func (g *fakeGrader) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ uuid.UUID, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) byKind(kind EventKind) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, ev := range n.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type recordingSink struct {
	mu      sync.Mutex
	records []Signal
}

func (s *recordingSink) Record(_ context.Context, _ uuid.UUID, sig Signal, _ int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, sig)
}

// ============================================================================
// Fixtures
// ============================================================================

func testAttempt(t *testing.T, numQuestions int) *model.Attempt {
	t.Helper()
	attempt := &model.Attempt{
		ID:               uuid.New(),
		CourseID:         "golang-cert",
		UserID:           7,
		TimeLimitMinutes: 1,
		Status:           model.AttemptStatusInProgress,
	}
	for i := 0; i < numQuestions; i++ {
		attempt.Questions = append(attempt.Questions, model.Question{
			ID:     uuid.New(),
			Type:   model.QuestionTypeShortAnswer,
			Prompt: "q",
			Marks:  1,
		})
	}
	return attempt
}

type harness struct {
	sess     *Session
	attempt  *model.Attempt
	store    *memStore
	grader   *fakeGrader
	notifier *recordingNotifier
	sink     *recordingSink
}

func newHarness(t *testing.T, numQuestions int) *harness {
	t.Helper()
	h := &harness{
		attempt:  testAttempt(t, numQuestions),
		store:    newMemStore(),
		grader:   &fakeGrader{},
		notifier: &recordingNotifier{},
		sink:     &recordingSink{},
	}
	h.sess = NewSession(SessionParams{
		Attempt:          h.attempt,
		RemainingSeconds: 60,
		Store:            h.store,
		Grader:           h.grader,
		Notifier:         h.notifier,
		Sink:             h.sink,
		Logger:           zerolog.Nop(),
	})
	return h
}

// ============================================================================
// Navigation
// ============================================================================

func TestGotoClampsToValidRange(t *testing.T) {
	h := newHarness(t, 3)

	assert.Equal(t, 2, h.sess.Goto(99))
	assert.Equal(t, 0, h.sess.Goto(-5))
	assert.Equal(t, 1, h.sess.Goto(1))
	assert.Equal(t, 1, h.sess.CurrentIndex())
}

// ============================================================================
// Answers
// ============================================================================

func TestSetAnswerPersistsAndOverwrites(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	qid := h.attempt.Questions[0].ID

	require.NoError(t, h.sess.SetAnswer(ctx, qid, "first"))
	require.NoError(t, h.sess.SetAnswer(ctx, qid, "second"))

	saved, _ := h.store.Get(ctx, h.attempt.ID)
	assert.Equal(t, "second", saved[qid.String()])
	assert.Equal(t, map[string]string{qid.String(): "second"}, h.sess.Answers())
}

func TestSetAnswerRejectsForeignQuestion(t *testing.T) {
	h := newHarness(t, 2)

	err := h.sess.SetAnswer(context.Background(), uuid.New(), "sneaky")
	assert.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestHydrationDropsUnknownKeys(t *testing.T) {
	attempt := testAttempt(t, 2)
	known := attempt.Questions[1].ID

	sess := NewSession(SessionParams{
		Attempt: attempt,
		SavedAnswers: map[string]string{
			known.String():      "kept",
			uuid.New().String(): "dropped",
			"not-a-uuid":        "dropped too",
		},
		RemainingSeconds: 60,
		Store:            newMemStore(),
		Grader:           &fakeGrader{},
		Notifier:         &recordingNotifier{},
		Logger:           zerolog.Nop(),
	})

	assert.Equal(t, map[string]string{known.String(): "kept"}, sess.Answers())
}

// ============================================================================
// Submission
// ============================================================================

func TestSubmitBuildsPositionalSequence(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	// Answer the first and third question, leave the middle slot empty.
	require.NoError(t, h.sess.SetAnswer(ctx, h.attempt.Questions[0].ID, "alpha"))
	require.NoError(t, h.sess.SetAnswer(ctx, h.attempt.Questions[2].ID, "gamma"))

	require.NoError(t, h.sess.Submit(ctx, TriggerUser))

	require.Len(t, h.grader.lastSeq, 3)
	require.NotNil(t, h.grader.lastSeq[0])
	assert.Equal(t, "alpha", *h.grader.lastSeq[0])
	assert.Nil(t, h.grader.lastSeq[1])
	require.NotNil(t, h.grader.lastSeq[2])
	assert.Equal(t, "gamma", *h.grader.lastSeq[2])
}

func TestSubmitDispatchesExactlyOnce(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	require.NoError(t, h.sess.Submit(ctx, TriggerUser))
	assert.Equal(t, StateTerminated, h.sess.State())

	// A second user submit reports the terminal state; forced triggers
	// are swallowed. Neither reaches the grader again.
	assert.ErrorIs(t, h.sess.Submit(ctx, TriggerUser), ErrNotActive)
	assert.NoError(t, h.sess.Submit(ctx, TriggerTimeout))
	assert.NoError(t, h.sess.Submit(ctx, TriggerViolation))

	assert.Equal(t, 1, h.grader.callCount())
	assert.Len(t, h.notifier.byKind(EventSubmitted), 1)
}

func TestSubmitClearsStoreAndTerminates(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	require.NoError(t, h.sess.SetAnswer(ctx, h.attempt.Questions[0].ID, "x"))

	require.NoError(t, h.sess.Submit(ctx, TriggerUser))

	saved, _ := h.store.Get(ctx, h.attempt.ID)
	assert.Empty(t, saved)
	assert.Equal(t, 1, h.store.cleared)

	events := h.notifier.byKind(EventSubmitted)
	require.Len(t, events, 1)
	assert.Equal(t, TriggerUser, events[0].Trigger)
}

func TestUserSubmitFailureReturnsToActiveForRetry(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	qid := h.attempt.Questions[0].ID
	require.NoError(t, h.sess.SetAnswer(ctx, qid, "keep me"))

	h.grader.err = errors.New("grading service unavailable")
	err := h.sess.Submit(ctx, TriggerUser)
	require.Error(t, err)
	assert.Equal(t, StateActive, h.sess.State())

	// The store was cleared but the in-memory record survives the failure,
	// so the retry submits the same sequence.
	h.grader.err = nil
	require.NoError(t, h.sess.Submit(ctx, TriggerUser))
	require.Len(t, h.grader.lastSeq, 1)
	require.NotNil(t, h.grader.lastSeq[0])
	assert.Equal(t, "keep me", *h.grader.lastSeq[0])
	assert.Equal(t, StateTerminated, h.sess.State())
}

func TestForcedSubmitTerminatesDespiteDispatchFailure(t *testing.T) {
	h := newHarness(t, 1)
	h.grader.err = errors.New("grading service unavailable")

	assert.NoError(t, h.sess.Submit(context.Background(), TriggerTimeout))
	assert.Equal(t, StateTerminated, h.sess.State())
}

func TestLostSubmissionRaceIsIdempotentSuccess(t *testing.T) {
	h := newHarness(t, 1)
	h.grader.err = ErrAlreadySubmitted

	assert.NoError(t, h.sess.Submit(context.Background(), TriggerUser))
	assert.Equal(t, StateTerminated, h.sess.State())
}

func TestSetAnswerRejectedAfterTermination(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	require.NoError(t, h.sess.Submit(ctx, TriggerUser))

	err := h.sess.SetAnswer(ctx, h.attempt.Questions[0].ID, "too late")
	assert.ErrorIs(t, err, ErrNotActive)
}

// ============================================================================
// Violation policy
// ============================================================================

func TestFirstViolationWarnsSecondSubmits(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	h.sess.HandleSignal(ctx, SignalVisibilityHidden)
	assert.Equal(t, StateActive, h.sess.State())
	assert.Len(t, h.notifier.byKind(EventWarning), 1)
	assert.Equal(t, 0, h.grader.callCount())

	h.sess.HandleSignal(ctx, SignalWindowBlur)
	assert.Equal(t, StateTerminated, h.sess.State())
	assert.Equal(t, 1, h.grader.callCount())

	events := h.notifier.byKind(EventSubmitted)
	require.Len(t, events, 1)
	assert.Equal(t, TriggerViolation, events[0].Trigger)
	assert.Equal(t, []Signal{SignalVisibilityHidden, SignalWindowBlur}, h.sink.records)
}

func TestViolationsIgnoredOutsideActive(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	require.NoError(t, h.sess.Submit(ctx, TriggerUser))

	h.sess.HandleSignal(ctx, SignalFullscreenExit)
	assert.Equal(t, 0, h.sess.Violations())
	assert.Empty(t, h.notifier.byKind(EventWarning))
}

func TestPageUnloadBypassesCounter(t *testing.T) {
	h := newHarness(t, 1)

	h.sess.HandleSignal(context.Background(), SignalPageUnload)

	assert.Equal(t, StateTerminated, h.sess.State())
	assert.Equal(t, 0, h.sess.Violations())
	assert.Empty(t, h.sink.records)

	events := h.notifier.byKind(EventSubmitted)
	require.Len(t, events, 1)
	assert.Equal(t, TriggerTeardown, events[0].Trigger)
}

// ============================================================================
// Countdown integration
// ============================================================================

func TestCountdownExpiryForcesSubmissionOnce(t *testing.T) {
	h := newHarness(t, 1)

	// Drive the 60-second clock by hand instead of waiting a minute.
	for i := 0; i < 60; i++ {
		h.sess.countdown.Tick()
	}
	// Extra ticks after firing are no-ops.
	h.sess.countdown.Tick()
	h.sess.countdown.Tick()

	assert.Equal(t, StateTerminated, h.sess.State())
	assert.Equal(t, 1, h.grader.callCount())

	events := h.notifier.byKind(EventSubmitted)
	require.Len(t, events, 1)
	assert.Equal(t, TriggerTimeout, events[0].Trigger)
}

func TestHydratedSessionResumesSavedAnswers(t *testing.T) {
	store := newMemStore()
	attempt := testAttempt(t, 2)
	ctx := context.Background()

	first := NewSession(SessionParams{
		Attempt:          attempt,
		RemainingSeconds: 60,
		Store:            store,
		Grader:           &fakeGrader{},
		Notifier:         &recordingNotifier{},
		Logger:           zerolog.Nop(),
	})
	require.NoError(t, first.SetAnswer(ctx, attempt.Questions[0].ID, "persisted"))
	first.Close()

	// A remount after reload hydrates from the same store.
	saved, err := store.Get(ctx, attempt.ID)
	require.NoError(t, err)
	second := NewSession(SessionParams{
		Attempt:          attempt,
		SavedAnswers:     saved,
		RemainingSeconds: 60,
		Store:            store,
		Grader:           &fakeGrader{},
		Notifier:         &recordingNotifier{},
		Logger:           zerolog.Nop(),
	})

	assert.Equal(t, "persisted", second.Answers()[attempt.Questions[0].ID.String()])
}
