package core

import "context"

// RunStore persists run state between Start and Resume calls. The engine
// saves a run when it suspends or reaches a terminal status and never
// persists the in-flight Running state. Implementations must return clones
// (or otherwise guarantee the caller cannot observe later mutations) and be
// safe for concurrent use.
//
// Get returns ErrRunNotFound for unknown ids.
type RunStore interface {
	Save(ctx context.Context, state *RunState) error
	Get(ctx context.Context, runID string) (*RunState, error)
	Delete(ctx context.Context, runID string) error
}
