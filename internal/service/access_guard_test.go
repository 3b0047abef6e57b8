package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certilearn/certilearn-backend/internal/model"
)

type stubAttemptReader struct {
	attempt *model.Attempt
	err     error
}

func (s *stubAttemptReader) GetByID(_ context.Context, _ uuid.UUID) (*model.Attempt, error) {
	return s.attempt, s.err
}

type clearRecordingStore struct {
	cleared []uuid.UUID
}

func (s *clearRecordingStore) Get(_ context.Context, _ uuid.UUID) (map[string]string, error) {
	return map[string]string{}, nil
}

func (s *clearRecordingStore) Put(_ context.Context, _ uuid.UUID, _, _ string) error {
	return nil
}

func (s *clearRecordingStore) Clear(_ context.Context, attemptID uuid.UUID) error {
	s.cleared = append(s.cleared, attemptID)
	return nil
}

func guardFixture(attempt *model.Attempt, err error) (*AccessGuard, *clearRecordingStore) {
	store := &clearRecordingStore{}
	return NewAccessGuard(&stubAttemptReader{attempt: attempt, err: err}, store, zerolog.Nop()), store
}

func TestAccessGuardValidPasses(t *testing.T) {
	attemptID := uuid.New()
	guard, store := guardFixture(&model.Attempt{
		ID:       attemptID,
		CourseID: "course-1",
		UserID:   7,
		Status:   model.AttemptStatusInProgress,
	}, nil)

	attempt, err := guard.Validate(context.Background(), "course-1", attemptID, 7)
	require.NoError(t, err)
	assert.Equal(t, attemptID, attempt.ID)
	assert.Empty(t, store.cleared)
}

func TestAccessGuardEmptyCourseDenied(t *testing.T) {
	attemptID := uuid.New()
	guard, store := guardFixture(nil, nil)

	_, err := guard.Validate(context.Background(), "", attemptID, 7)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, []uuid.UUID{attemptID}, store.cleared)
}

func TestAccessGuardNilAttemptIDDenied(t *testing.T) {
	guard, store := guardFixture(nil, nil)

	_, err := guard.Validate(context.Background(), "course-1", uuid.Nil, 7)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Empty(t, store.cleared, "a nil identifier has nothing to purge")
}

func TestAccessGuardUnknownAttemptDenied(t *testing.T) {
	guard, store := guardFixture(nil, pgx.ErrNoRows)

	attemptID := uuid.New()
	_, err := guard.Validate(context.Background(), "course-1", attemptID, 7)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, []uuid.UUID{attemptID}, store.cleared)
}

func TestAccessGuardWrongCourseDenied(t *testing.T) {
	attemptID := uuid.New()
	guard, _ := guardFixture(&model.Attempt{
		ID:       attemptID,
		CourseID: "course-1",
		UserID:   7,
		Status:   model.AttemptStatusInProgress,
	}, nil)

	_, err := guard.Validate(context.Background(), "course-2", attemptID, 7)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestAccessGuardWrongOwnerDenied(t *testing.T) {
	attemptID := uuid.New()
	guard, _ := guardFixture(&model.Attempt{
		ID:       attemptID,
		CourseID: "course-1",
		UserID:   7,
		Status:   model.AttemptStatusInProgress,
	}, nil)

	_, err := guard.Validate(context.Background(), "course-1", attemptID, 8)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestAccessGuardTerminalAttemptDenied(t *testing.T) {
	attemptID := uuid.New()
	for _, status := range []model.AttemptStatus{model.AttemptStatusProcessing, model.AttemptStatusCompleted} {
		guard, store := guardFixture(&model.Attempt{
			ID:       attemptID,
			CourseID: "course-1",
			UserID:   7,
			Status:   status,
		}, nil)

		_, err := guard.Validate(context.Background(), "course-1", attemptID, 7)
		assert.ErrorIs(t, err, ErrAccessDenied, string(status))
		assert.Equal(t, []uuid.UUID{attemptID}, store.cleared, string(status))
	}
}
