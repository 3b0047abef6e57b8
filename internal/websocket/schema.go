package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionGoto     Action = "goto"
	ActionSignal   Action = "signal"
	ActionSubmit   Action = "submit"
	ActionTeardown Action = "teardown"
	ActionPing     Action = "ping"
)

// RequestPayload is the inbound message shape. Action selects which of the
// remaining fields are meaningful.
type RequestPayload struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer,omitempty"`
	Index      int    `json:"index,omitempty"`
	Signal     string `json:"signal,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventSaved     Event = "saved"
	EventCursor    Event = "cursor"
	EventWarning   Event = "warning"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse delivers the full resume payload after a session mounts.
type StateResponse struct {
	Event Event       `json:"event"`
	State interface{} `json:"state"`
}

// SavedResponse acknowledges a single answer edit.
type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

// CursorResponse echoes the clamped question index after a goto.
type CursorResponse struct {
	Event Event `json:"event"`
	Index int   `json:"index"`
}

// WarningResponse notifies the client of a first integrity violation.
type WarningResponse struct {
	Event Event `json:"event"`
	Count int   `json:"count"`
}

// SubmittedResponse marks the end of the session. Forced indicates the
// submission was triggered by a violation, timeout, or teardown rather
// than the learner pressing submit.
type SubmittedResponse struct {
	Event  Event  `json:"event"`
	Forced bool   `json:"forced"`
	Reason string `json:"reason"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
