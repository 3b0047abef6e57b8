package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certilearn/certilearn-backend/internal/engine"
)

// stubMarker mimics the conditional status transition: MarkProcessing wins
// only while the attempt is in progress, RevertProcessing restores it.
type stubMarker struct {
	inProgress bool
	markErr    error
	reverts    int
}

func (m *stubMarker) MarkProcessing(_ context.Context, _ uuid.UUID) (bool, error) {
	if m.markErr != nil {
		return false, m.markErr
	}
	if !m.inProgress {
		return false, nil
	}
	m.inProgress = false
	return true, nil
}

func (m *stubMarker) RevertProcessing(_ context.Context, _ uuid.UUID) error {
	m.reverts++
	m.inProgress = true
	return nil
}

type stubQueue struct {
	err    error
	pushed [][]byte
}

func (q *stubQueue) RPush(_ context.Context, _ string, values ...interface{}) *redis.IntCmd {
	if q.err != nil {
		return redis.NewIntResult(0, q.err)
	}
	for _, v := range values {
		q.pushed = append(q.pushed, v.([]byte))
	}
	return redis.NewIntResult(int64(len(values)), nil)
}

func dispatcherFixture(marker *stubMarker, queue *stubQueue) *SubmissionDispatcher {
	return &SubmissionDispatcher{attempts: marker, queue: queue, log: zerolog.Nop()}
}

func TestDispatcherEnqueuesWonSubmission(t *testing.T) {
	marker := &stubMarker{inProgress: true}
	queue := &stubQueue{}
	d := dispatcherFixture(marker, queue)

	attemptID := uuid.New()
	answer := "B"
	err := d.Submit(context.Background(), "course-1", attemptID, []*string{&answer, nil})
	require.NoError(t, err)

	require.Len(t, queue.pushed, 1)
	var payload SubmissionPayload
	require.NoError(t, json.Unmarshal(queue.pushed[0], &payload))
	assert.Equal(t, "course-1", payload.CourseID)
	assert.Equal(t, attemptID.String(), payload.AttemptID)
	require.Len(t, payload.Answers, 2)
	assert.Equal(t, "B", *payload.Answers[0])
	assert.Nil(t, payload.Answers[1])
	assert.Zero(t, marker.reverts)
}

func TestDispatcherLostRaceIsAlreadySubmitted(t *testing.T) {
	marker := &stubMarker{inProgress: false}
	queue := &stubQueue{}
	d := dispatcherFixture(marker, queue)

	err := d.Submit(context.Background(), "course-1", uuid.New(), nil)
	assert.ErrorIs(t, err, engine.ErrAlreadySubmitted)
	assert.Empty(t, queue.pushed)
}

func TestDispatcherRevertsOnEnqueueFailure(t *testing.T) {
	marker := &stubMarker{inProgress: true}
	queue := &stubQueue{err: errors.New("redis down")}
	d := dispatcherFixture(marker, queue)

	err := d.Submit(context.Background(), "course-1", uuid.New(), nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, engine.ErrAlreadySubmitted,
		"a failed enqueue must stay a recoverable error")
	assert.Equal(t, 1, marker.reverts)
	assert.True(t, marker.inProgress, "the attempt must be retryable again")
}

func TestDispatcherRetrySucceedsAfterEnqueueFailure(t *testing.T) {
	marker := &stubMarker{inProgress: true}
	queue := &stubQueue{err: errors.New("redis down")}
	d := dispatcherFixture(marker, queue)

	attemptID := uuid.New()
	require.Error(t, d.Submit(context.Background(), "course-1", attemptID, nil))

	queue.err = nil
	require.NoError(t, d.Submit(context.Background(), "course-1", attemptID, nil))
	assert.Len(t, queue.pushed, 1)
}

func TestDispatcherMarkErrorPropagates(t *testing.T) {
	marker := &stubMarker{markErr: errors.New("db down")}
	queue := &stubQueue{}
	d := dispatcherFixture(marker, queue)

	err := d.Submit(context.Background(), "course-1", uuid.New(), nil)
	assert.Error(t, err)
	assert.Empty(t, queue.pushed)
	assert.Zero(t, marker.reverts)
}
