package engine

import "errors"

// Engine sentinel errors.
var (
	// ErrNotActive is returned when an input arrives in a state that does
	// not accept it (Terminated, Denied, or mid-Submitting).
	ErrNotActive = errors.New("session is not active")
	// ErrSubmissionInFlight is returned to a user-initiated submit that
	// races an already-running submission.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrUnknownQuestion is returned for an answer edit keyed by a question
	// identifier that does not belong to the attempt.
	ErrUnknownQuestion = errors.New("question does not belong to this attempt")
	// ErrAlreadySubmitted is returned by the grading dispatch when the
	// attempt has already left in_progress.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
)
