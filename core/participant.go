package core

import "context"

// Participant is one conversational unit. Given the conversation so far it
// produces an Outcome: a textual reply, a handoff request or a request that
// the run pause for external input.
//
// Implementations must:
//   - Be side-effect free with respect to engine state. They may perform
//     external I/O internally but must never mutate the conversation they
//     receive; new content is returned, not written in place.
//   - Honor ctx cancellation. The engine derives a per-invocation deadline
//     from its configured participant timeout.
//   - Be safe for use across concurrently executing runs; all per-run state
//     lives in the Conversation passed in.
//
// An unrecoverable fault is reported by returning a non-nil error, which
// terminates the run. A ctx deadline hit inside Invoke is recovered by the
// engine and downgraded to a diagnostic reply.
type Participant interface {
	// Name returns the participant's routing identity.
	Name() string

	// Invoke processes the conversation and returns the participant's outcome.
	Invoke(ctx context.Context, conv Conversation) (Outcome, error)
}

// Outcome is the result of one participant invocation. Exactly one of the
// concrete variants (Reply, Handoff, InputRequest) is returned per turn.
type Outcome interface{ outcome() }

// Reply is a textual response appended to the conversation, authored by the
// invoked participant.
type Reply struct {
	Text string
}

// Handoff requests transfer of control to another participant. The engine
// verifies the target against the routing graph before switching; the
// transition itself appends no visible message.
type Handoff struct {
	Target string
}

// InputRequest asks the engine to suspend the run until the caller supplies
// a user response. Prompt carries context the host can display while asking.
type InputRequest struct {
	Prompt string
}

func (Reply) outcome()        {}
func (Handoff) outcome()      {}
func (InputRequest) outcome() {}
