// Package handoffmesh provides a high-level façade over the core workflow
// engine for coordinating multiple conversational participants with
// graph-constrained handoffs and cooperative suspension on user input. Most
// applications interact with this package by:
//  1. Building a routing graph via graph.NewBuilder (or config.LoadFile)
//  2. Creating a Mesh via New() with the participant implementations
//  3. Driving runs with Start/Resume and draining events via stream.Collect
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a shared run store and a
// structured logger.
package handoffmesh

import (
	"context"

	"github.com/hupe1980/handoffmesh/core"
	"github.com/hupe1980/handoffmesh/engine"
	"github.com/hupe1980/handoffmesh/graph"
	"github.com/hupe1980/handoffmesh/logging"
	"github.com/hupe1980/handoffmesh/metrics"
	"github.com/hupe1980/handoffmesh/stream"
)

// Options configures the Mesh instance.
type Options struct {
	// Engine configuration (hop limit, timeouts, buffers, auto-advance).
	EngineConfig engine.Config

	// Termination decides when a run's conversation has reached a natural
	// end. Defaults to core.ExitPhrases with the default phrases.
	Termination core.Condition

	// RunStore persists suspended runs (defaults to in-memory).
	RunStore core.RunStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// Metrics records engine counters (nil disables recording).
	Metrics *metrics.Recorder
}

// Mesh is the high-level façade aggregating the underlying workflow engine.
type Mesh struct {
	engine *engine.Engine
}

// New creates a Mesh over a validated routing graph and the participant
// implementations for its nodes.
func New(g *graph.Graph, participants []core.Participant, optFns ...func(o *Options)) (*Mesh, error) {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	eng, err := engine.New(g, opts.Termination, participants, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		if opts.RunStore != nil {
			o.RunStore = opts.RunStore
		}
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})
	if err != nil {
		return nil, err
	}

	return &Mesh{engine: eng}, nil
}

// Start begins a new run and returns its id plus the event stream.
func (m *Mesh) Start(ctx context.Context, initialMessage string) (string, <-chan core.Event, error) {
	return m.engine.Start(ctx, initialMessage)
}

// StartSync begins a new run and drains it to the first suspension or a
// terminal state.
func (m *Mesh) StartSync(ctx context.Context, initialMessage string) (string, *stream.Collector, error) {
	runID, events, err := m.engine.Start(ctx, initialMessage)
	if err != nil {
		return "", nil, err
	}
	return runID, stream.Collect(events), nil
}

// Resume continues a suspended run with responses keyed by request id.
func (m *Mesh) Resume(ctx context.Context, runID string, responses map[string]string) (<-chan core.Event, error) {
	return m.engine.Resume(ctx, runID, responses)
}

// ResumeSync continues a suspended run and drains it to the next suspension
// or a terminal state.
func (m *Mesh) ResumeSync(ctx context.Context, runID string, responses map[string]string) (*stream.Collector, error) {
	events, err := m.engine.Resume(ctx, runID, responses)
	if err != nil {
		return nil, err
	}
	return stream.Collect(events), nil
}

// Status reports the run's current status.
func (m *Mesh) Status(ctx context.Context, runID string) (core.RunStatus, error) {
	return m.engine.Status(ctx, runID)
}

// Cancel abandons an actively running run.
func (m *Mesh) Cancel(runID string) error {
	return m.engine.Cancel(runID)
}
