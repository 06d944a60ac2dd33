package core

import "time"

// RunStatus enumerates the lifecycle states of a run.
type RunStatus string

const (
	// StatusRunning means the engine is actively driving turns.
	StatusRunning RunStatus = "running"
	// StatusAwaitingInput means the run is suspended on one or more pending
	// input requests and will not progress until Resume is called.
	StatusAwaitingInput RunStatus = "awaiting_input"
	// StatusCompleted is terminal: the termination condition fired or no
	// participant could proceed.
	StatusCompleted RunStatus = "completed"
	// StatusFailed is terminal: an unrecoverable fault, routing violation,
	// loop detection or cancellation ended the run.
	StatusFailed RunStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PendingRequest is a suspended point in a run awaiting external input. It
// exists only while the run is AwaitingInput and is resolved exactly once by
// a caller-supplied response keyed by ID.
type PendingRequest struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	From   string `json:"from"`
}

// RunState is the complete, serializable state of one run. It is owned
// exclusively by the engine goroutine driving the run; stores receive and
// return clones. A suspended run is reconstructed from this value alone,
// which is what makes Start/Resume work across process boundaries when a
// shared RunStore is configured.
type RunState struct {
	ID           string           `json:"id"`
	Conversation Conversation     `json:"conversation"`
	Current      string           `json:"current"`
	Status       RunStatus        `json:"status"`
	Pending      []PendingRequest `json:"pending,omitempty"`
	FailReason   string           `json:"fail_reason,omitempty"`
	Created      time.Time        `json:"created"`
	Updated      time.Time        `json:"updated"`
}

// NewRunState creates a fresh run positioned at the coordinator.
func NewRunState(id, coordinator string) *RunState {
	now := time.Now().UTC()
	return &RunState{
		ID:      id,
		Current: coordinator,
		Status:  StatusRunning,
		Created: now,
		Updated: now,
	}
}

// Clone returns a deep copy safe for independent mutation.
func (r *RunState) Clone() *RunState {
	clone := *r
	clone.Conversation = r.Conversation.Clone()
	if r.Pending != nil {
		clone.Pending = make([]PendingRequest, len(r.Pending))
		copy(clone.Pending, r.Pending)
	}
	return &clone
}

// PendingByID returns the pending request with the given id, if present.
func (r *RunState) PendingByID(id string) (PendingRequest, bool) {
	for _, p := range r.Pending {
		if p.ID == id {
			return p, true
		}
	}
	return PendingRequest{}, false
}
