package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorizedHandoff is recorded when a participant requests a
	// handoff to a target outside its allowed successor set.
	ErrUnauthorizedHandoff = errors.New("unauthorized handoff")

	// ErrRoutingLoopDetected is recorded when the bounded hop counter is
	// exceeded within a single external turn.
	ErrRoutingLoopDetected = errors.New("routing loop detected")

	// ErrParticipantTimeout indicates a participant exceeded its invocation
	// deadline. The engine recovers it locally by substituting a diagnostic
	// reply; it never terminates a run.
	ErrParticipantTimeout = errors.New("participant timeout")

	// ErrUnknownPendingRequest is returned by Resume when a response keys an
	// unknown or already-resolved request. Run state is left untouched.
	ErrUnknownPendingRequest = errors.New("unknown pending request")

	// ErrUnresolvedPendingRequest is returned by Resume when not every
	// outstanding request received a response. Run state is left untouched.
	ErrUnresolvedPendingRequest = errors.New("unresolved pending request")

	// ErrCancelled is recorded when a run is abandoned by the caller.
	ErrCancelled = errors.New("run cancelled")

	// ErrRunNotFound is returned for operations on an unknown run id.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoPendingRequests is returned by Resume on a run that is not
	// suspended, including completed and failed runs.
	ErrNoPendingRequests = errors.New("run has no pending requests")
)

// ParticipantFailureError wraps an unrecoverable fault raised by a
// participant. It terminates the run.
type ParticipantFailureError struct {
	Participant string
	Err         error
}

// Error implements the error interface.
func (e *ParticipantFailureError) Error() string {
	return fmt.Sprintf("participant %s failed: %v", e.Participant, e.Err)
}

// Unwrap exposes the underlying fault for errors.Is / errors.As.
func (e *ParticipantFailureError) Unwrap() error { return e.Err }
