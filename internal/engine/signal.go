package engine

// Signal is an environment signal forwarded by the client while a test is
// being taken. The engine's reaction logic is platform-independent; the
// browser (or any other shell) just names which native event it observed.
type Signal string

const (
	// SignalVisibilityHidden fires when the document becomes hidden (tab
	// switch, window minimize).
	SignalVisibilityHidden Signal = "visibility_hidden"
	// SignalWindowBlur fires when the window loses focus while the document
	// is still visible (covering app, DevTools, second monitor).
	SignalWindowBlur Signal = "window_blur"
	// SignalFullscreenExit fires when fullscreen presentation is abandoned.
	SignalFullscreenExit Signal = "fullscreen_exit"
	// SignalPageUnload fires from the client's before-unload handler. It is
	// not a counted violation: the page is going away, so it routes straight
	// to the unconditional teardown submission.
	SignalPageUnload Signal = "page_unload"
)

// ParseSignal validates a client-supplied signal name.
func ParseSignal(raw string) (Signal, bool) {
	switch Signal(raw) {
	case SignalVisibilityHidden, SignalWindowBlur, SignalFullscreenExit, SignalPageUnload:
		return Signal(raw), true
	}
	return "", false
}

// IsViolation reports whether the signal counts against the violation policy.
func (s Signal) IsViolation() bool {
	switch s {
	case SignalVisibilityHidden, SignalWindowBlur, SignalFullscreenExit:
		return true
	}
	return false
}

// Trigger identifies what forced a session out of Active into submission.
type Trigger string

const (
	TriggerUser      Trigger = "user"
	TriggerViolation Trigger = "violation"
	TriggerTimeout   Trigger = "timeout"
	TriggerTeardown  Trigger = "teardown"
)

// Forced reports whether the trigger is an auto-submit path. Forced
// submissions are fire-and-forget: a failure is logged, never surfaced,
// because the triggering context precludes meaningful recovery UI.
func (t Trigger) Forced() bool {
	return t != TriggerUser
}

// EventKind classifies events the engine pushes back to the UI layer.
type EventKind string

const (
	// EventWarning is the one non-terminal warning after the first violation.
	EventWarning EventKind = "warning"
	// EventSubmitted announces that the session reached Terminated.
	EventSubmitted EventKind = "submitted"
)

// Event is pushed to the UI layer through a Notifier.
type Event struct {
	Kind       EventKind `json:"kind"`
	Violations int       `json:"violations,omitempty"`
	Trigger    Trigger   `json:"trigger,omitempty"`
}
