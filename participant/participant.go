// Package participant provides small core.Participant implementations: a
// function adapter for hosts that wrap their own clients, and a scripted
// participant replaying canned outcomes for tests and demos. Real
// conversational units live outside this module; the engine only sees the
// Invoke contract.
package participant

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/handoffmesh/core"
)

// Func adapts a plain function into a core.Participant.
type Func struct {
	name string
	fn   func(ctx context.Context, conv core.Conversation) (core.Outcome, error)
}

// NewFunc creates a participant from a function.
func NewFunc(name string, fn func(ctx context.Context, conv core.Conversation) (core.Outcome, error)) *Func {
	return &Func{name: name, fn: fn}
}

// Name returns the participant's routing identity.
func (f *Func) Name() string { return f.name }

// Invoke delegates to the wrapped function.
func (f *Func) Invoke(ctx context.Context, conv core.Conversation) (core.Outcome, error) {
	return f.fn(ctx, conv)
}

// ScriptedOptions configures a Scripted participant.
type ScriptedOptions struct {
	// Loop restarts the script from the beginning once exhausted instead of
	// failing. Useful for driving deliberately non-terminating routing in
	// loop-detection tests.
	Loop bool
}

// Scripted replays a fixed sequence of outcomes, one per invocation. An
// exhausted script fails the run unless Loop is set. Safe for concurrent
// use, though a script is typically owned by a single run.
type Scripted struct {
	name string
	loop bool

	mu       sync.Mutex
	outcomes []core.Outcome
	next     int
	count    int
}

// NewScripted creates a scripted participant.
func NewScripted(name string, outcomes []core.Outcome, optFns ...func(o *ScriptedOptions)) *Scripted {
	opts := ScriptedOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Scripted{name: name, loop: opts.Loop, outcomes: outcomes}
}

// Name returns the participant's routing identity.
func (s *Scripted) Name() string { return s.name }

// Invoke returns the next scripted outcome.
func (s *Scripted) Invoke(ctx context.Context, _ core.Conversation) (core.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.outcomes) {
		if !s.loop || len(s.outcomes) == 0 {
			return nil, fmt.Errorf("script for %s exhausted after %d outcomes", s.name, len(s.outcomes))
		}
		s.next = 0
	}

	outcome := s.outcomes[s.next]
	s.next++
	s.count++
	return outcome, nil
}

// Invocations reports how many outcomes have been served so far.
func (s *Scripted) Invocations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
