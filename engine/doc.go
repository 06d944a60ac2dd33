// Package engine implements the handoff-routing workflow engine: a
// cooperative state machine that drives turns across a graph of
// conversational participants.
//
// # State machine
//
// A run moves through Running, AwaitingInput, Completed and Failed. Each
// turn invokes the current participant with the conversation so far and
// applies its outcome:
//
//   - Reply appends a participant-authored message and evaluates the
//     termination condition. A participant with exactly one allowed
//     successor silently advances there (when AutoAdvance is enabled); the
//     coordinator with ambiguous routing suspends to ask the human; any
//     other participant stays current and speaks again.
//   - Handoff transfers control to the target after verifying it against
//     the routing graph. No visible message is appended; a HandoffOccurred
//     event records the transition.
//   - InputRequest creates a pending request, suspends the run and returns
//     control to the caller through the event stream.
//
// A bounded hop counter limits consecutive routing transitions within one
// external turn, so cyclic graphs fail deterministically instead of
// spinning. Participant timeouts are recovered locally by substituting a
// diagnostic reply; unrecoverable participant faults, routing violations
// and cancellation terminate the run.
//
// # Suspension and resumption
//
// The engine never blocks waiting for user input. Suspended run state is
// persisted through a core.RunStore and reconstructed by Resume, which
// appends the caller's responses as user messages and continues from the
// participant that asked. One goroutine drives a run; the routing graph and
// participant set are read-only after construction, so independent runs
// execute fully in parallel.
package engine
