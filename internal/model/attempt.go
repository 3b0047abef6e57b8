package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusProcessing AttemptStatus = "processing"
	AttemptStatusCompleted  AttemptStatus = "completed"
)

// Attempt represents one instance of a learner taking a certification test.
// Questions are immutable once loaded; only the engine moves the status out
// of in_progress, and only the grading service fills the score fields.
type Attempt struct {
	ID               uuid.UUID     `json:"id"`
	CourseID         string        `json:"course_id"`
	UserID           int           `json:"user_id"`
	Questions        []Question    `json:"questions"`
	TimeLimitMinutes int           `json:"time_limit_minutes"`
	PassingScore     float64       `json:"passing_score"`
	TotalMarks       float64       `json:"total_marks"`
	Status           AttemptStatus `json:"status"`
	FinalScore       *float64      `json:"final_score,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       *time.Time    `json:"finished_at,omitempty"`
}

// NormalizeQuestions canonicalizes every question on the attempt (type
// folding, true/false options, back-filled IDs). Call once at load time,
// before the attempt is handed to a session.
func (a *Attempt) NormalizeQuestions() {
	for i := range a.Questions {
		NormalizeQuestion(&a.Questions[i], a.ID, i)
	}
}

// AttemptState is the resume payload returned to a reloading client:
// previously saved answers plus the authoritative remaining time.
type AttemptState struct {
	AttemptID        uuid.UUID         `json:"attempt_id"`
	CourseID         string            `json:"course_id"`
	SavedAnswers     map[string]string `json:"saved_answers"`
	RemainingSeconds int               `json:"remaining_seconds"`
}
