package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies engine events.
type EventType string

const (
	// EventStatusChanged signals a run status transition.
	EventStatusChanged EventType = "status_changed"
	// EventHandoffOccurred signals control moved between participants,
	// whether by explicit handoff or implicit single-successor advance.
	EventHandoffOccurred EventType = "handoff_occurred"
	// EventPendingInput signals the run suspended on a pending input request.
	EventPendingInput EventType = "pending_input"
	// EventRunCompleted carries the full conversation of a completed run.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed carries the failure context of a failed run.
	EventRunFailed EventType = "run_failed"
)

// Failure describes why a run ended in StatusFailed. LastMessages holds the
// conversation tail so callers can display or log the failure without
// inspecting engine internals.
type Failure struct {
	Participant  string    `json:"participant,omitempty"`
	Reason       string    `json:"reason"`
	LastMessages []Message `json:"last_messages,omitempty"`
}

// Event is the unit of observability emitted by the engine. Events form a
// lazy, finite, non-restartable sequence per run, in strict occurrence
// order. After emission an event must be treated as immutable.
//
// Only the fields relevant to Type are populated:
//   - StatusChanged: Status
//   - HandoffOccurred: From, To
//   - PendingInput: Request, Conversation (snapshot at suspension)
//   - RunCompleted: Conversation (final)
//   - RunFailed: Failure
type Event struct {
	ID           string          `json:"id"`
	RunID        string          `json:"run_id"`
	Type         EventType       `json:"type"`
	Timestamp    time.Time       `json:"timestamp"`
	Status       RunStatus       `json:"status,omitempty"`
	From         string          `json:"from,omitempty"`
	To           string          `json:"to,omitempty"`
	Request      *PendingRequest `json:"request,omitempty"`
	Conversation Conversation    `json:"conversation,omitempty"`
	Failure      *Failure        `json:"failure,omitempty"`
}

// NewID generates a unique identifier for runs, requests and events.
func NewID() string { return uuid.NewString() }

func newEvent(runID string, typ EventType) Event {
	return Event{ID: NewID(), RunID: runID, Type: typ, Timestamp: time.Now().UTC()}
}

// NewStatusEvent creates a StatusChanged event.
func NewStatusEvent(runID string, status RunStatus) Event {
	e := newEvent(runID, EventStatusChanged)
	e.Status = status
	return e
}

// NewHandoffEvent creates a HandoffOccurred event.
func NewHandoffEvent(runID, from, to string) Event {
	e := newEvent(runID, EventHandoffOccurred)
	e.From = from
	e.To = to
	return e
}

// NewPendingInputEvent creates a PendingInput event carrying the request and
// a snapshot of the conversation at the moment of suspension.
func NewPendingInputEvent(runID string, req PendingRequest, conv Conversation) Event {
	e := newEvent(runID, EventPendingInput)
	e.Request = &req
	e.Conversation = conv.Clone()
	return e
}

// NewRunCompletedEvent creates a RunCompleted event with the final conversation.
func NewRunCompletedEvent(runID string, conv Conversation) Event {
	e := newEvent(runID, EventRunCompleted)
	e.Conversation = conv.Clone()
	return e
}

// NewRunFailedEvent creates a RunFailed event.
func NewRunFailedEvent(runID string, failure Failure) Event {
	e := newEvent(runID, EventRunFailed)
	e.Failure = &failure
	return e
}
