package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTerminalReader struct {
	finishedAt time.Time
	err        error
}

func (s *stubTerminalReader) LatestTerminal(_ context.Context, _ string, _ int) (time.Time, error) {
	return s.finishedAt, s.err
}

func TestCooldownNoTerminalAttemptAllows(t *testing.T) {
	gate := NewCooldownService(&stubTerminalReader{err: pgx.ErrNoRows}, time.Hour)

	window, err := gate.CanStartNewAttempt(context.Background(), "course-1", 7)
	require.NoError(t, err)
	assert.False(t, window.Active)
}

func TestCooldownActiveWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	finished := now.Add(-20 * time.Minute)

	gate := NewCooldownService(&stubTerminalReader{finishedAt: finished}, time.Hour)
	gate.now = func() time.Time { return now }

	window, err := gate.CanStartNewAttempt(context.Background(), "course-1", 7)
	require.NoError(t, err)
	assert.True(t, window.Active)
	assert.Equal(t, (40 * time.Minute).Milliseconds(), window.RemainingMs)
	assert.Equal(t, finished.Add(time.Hour), window.NextAvailableAt)
}

func TestCooldownExpiredWindowAllows(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	finished := now.Add(-61 * time.Minute)

	gate := NewCooldownService(&stubTerminalReader{finishedAt: finished}, time.Hour)
	gate.now = func() time.Time { return now }

	window, err := gate.CanStartNewAttempt(context.Background(), "course-1", 7)
	require.NoError(t, err)
	assert.False(t, window.Active)
	assert.Zero(t, window.RemainingMs)
}

func TestCooldownBoundaryExactlyElapsedAllows(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	finished := now.Add(-time.Hour)

	gate := NewCooldownService(&stubTerminalReader{finishedAt: finished}, time.Hour)
	gate.now = func() time.Time { return now }

	window, err := gate.CanStartNewAttempt(context.Background(), "course-1", 7)
	require.NoError(t, err)
	assert.False(t, window.Active, "a remaining time of exactly zero must allow the retake")
}

func TestCooldownPropagatesRepositoryErrors(t *testing.T) {
	gate := NewCooldownService(&stubTerminalReader{err: assert.AnError}, time.Hour)

	_, err := gate.CanStartNewAttempt(context.Background(), "course-1", 7)
	assert.Error(t, err)
}
