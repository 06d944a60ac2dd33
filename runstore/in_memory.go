// Package runstore provides RunStore implementations persisting suspended
// and terminal run state between Start and Resume calls. The in-memory store
// suits single-process hosts and tests; the Redis store lets multiple host
// processes resume each other's runs.
package runstore

import (
	"context"
	"sync"

	"github.com/hupe1980/handoffmesh/core"
)

// InMemoryStore is a volatile RunStore keeping run state in a process-local
// map. It is safe for concurrent access. Stored and returned states are
// cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*core.RunState
}

// NewInMemoryStore constructs an empty in-memory run store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[string]*core.RunState)}
}

// Save stores a clone of the provided run state snapshot.
func (s *InMemoryStore) Save(_ context.Context, state *core.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[state.ID] = state.Clone()
	return nil
}

// Get returns a clone of the stored run state or core.ErrRunNotFound.
func (s *InMemoryStore) Get(_ context.Context, runID string) (*core.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.runs[runID]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	return state.Clone(), nil
}

// Delete removes a run. Deleting an unknown id is not an error.
func (s *InMemoryStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}
