package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/handoffmesh/core"
	"github.com/hupe1980/handoffmesh/graph"
	"github.com/hupe1980/handoffmesh/logging"
	"github.com/hupe1980/handoffmesh/metrics"
	"github.com/hupe1980/handoffmesh/runstore"
)

// Config defines tuning parameters for the engine's routing behavior.
type Config struct {
	// HopLimit bounds consecutive routing transitions (explicit handoffs and
	// implicit single-successor advances) within one external turn. Exceeding
	// it fails the run with core.ErrRoutingLoopDetected.
	HopLimit int

	// ParticipantTimeout bounds each participant invocation. A deadline hit
	// is downgraded to a diagnostic reply so the run continues instead of
	// deadlocking. Zero disables the per-invocation deadline.
	ParticipantTimeout time.Duration

	// AutoAdvance controls the implicit single-successor advance after a
	// reply: when the replying participant has exactly one allowed successor,
	// control silently moves there without an explicit handoff. The original
	// coordinator-delegation behavior; disable for strictly explicit routing.
	AutoAdvance bool

	// EventBufferSize sets the channel buffer for emitted events. Larger
	// buffers decouple slow consumers from the run goroutine.
	EventBufferSize int

	// FailureContextMessages is how many trailing conversation messages a
	// RunFailed event carries for display and logging.
	FailureContextMessages int
}

// DefaultConfig provides production-ready defaults.
var DefaultConfig = Config{
	HopLimit:               25,
	ParticipantTimeout:     30 * time.Second,
	AutoAdvance:            true,
	EventBufferSize:        64,
	FailureContextMessages: 5,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains routing and buffering parameters. Defaults to
	// DefaultConfig if not specified.
	Config Config

	// RunStore persists suspended and terminal run state between Start and
	// Resume. Defaults to an in-memory implementation.
	RunStore core.RunStore

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger

	// Metrics records run/turn/handoff counters. Nil disables recording.
	Metrics *metrics.Recorder
}

// Engine drives handoff-routing workflow runs: it invokes participants,
// applies routing decisions against the graph, manages suspension and
// resumption, and emits a stream of events per run.
//
// The engine is a cooperative state machine. One goroutine drives a run; no
// two turns of the same run execute concurrently, and the only suspension
// point it observes is the participant invocation itself. The routing graph
// and participant set are read-only after construction, so independent runs
// execute fully in parallel, each owning an exclusive RunState.
type Engine struct {
	graph        *graph.Graph
	participants map[string]core.Participant
	stop         core.Condition
	config       Config

	store   core.RunStore
	logger  logging.Logger
	metrics *metrics.Recorder

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New creates an Engine over a validated routing graph, a termination
// condition and the participant implementations for every graph node. A nil
// condition falls back to core.ExitPhrases with the default phrases.
//
// Construction fails when a graph participant has no implementation or an
// implementation is not part of the graph; runs never start against a
// half-wired workflow.
func New(g *graph.Graph, stop core.Condition, participants []core.Participant, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Config:   DefaultConfig,
		RunStore: runstore.NewInMemoryStore(),
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if stop == nil {
		stop = core.ExitPhrases()
	}

	byName := make(map[string]core.Participant, len(participants))
	for _, p := range participants {
		if _, dup := byName[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate participant %q", p.Name())
		}
		if !g.Contains(p.Name()) {
			return nil, fmt.Errorf("participant %q is not part of the routing graph", p.Name())
		}
		byName[p.Name()] = p
	}
	for _, id := range g.Participants() {
		if _, ok := byName[id]; !ok {
			return nil, fmt.Errorf("no implementation registered for participant %q", id)
		}
	}

	return &Engine{
		graph:        g,
		participants: byName,
		stop:         stop,
		config:       opts.Config,
		store:        opts.RunStore,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		activeRuns:   make(map[string]context.CancelFunc),
	}, nil
}

// Start begins a new run with the given initial user message. It returns the
// run id and a finite event channel covering execution up to the first
// suspension or the terminal state. The channel is closed when the run
// suspends, completes or fails; consumers must not assume buffering beyond
// one event at a time.
func (e *Engine) Start(ctx context.Context, initialMessage string) (string, <-chan core.Event, error) {
	state := core.NewRunState(core.NewID(), e.graph.Coordinator())
	if initialMessage != "" {
		state.Conversation = append(state.Conversation, core.NewUserMessage(initialMessage))
	}

	events, err := e.launch(ctx, state)
	if err != nil {
		return "", nil, err
	}

	e.metrics.RunStarted()
	e.logger.Info("run started", "run_id", state.ID, "coordinator", state.Current)

	return state.ID, events, nil
}

// Resume continues a suspended run. Responses must cover every outstanding
// pending request, keyed by request id. Each response is appended as a user
// message tagged with the participant that asked, then execution resumes
// from the participant that issued the most recent request.
//
// A response for an unknown or already-resolved request fails with
// core.ErrUnknownPendingRequest; a missing response fails with
// core.ErrUnresolvedPendingRequest. Neither mutates run state. Resuming a
// run that is not suspended (including completed and failed runs) fails
// with core.ErrNoPendingRequests.
func (e *Engine) Resume(ctx context.Context, runID string, responses map[string]string) (<-chan core.Event, error) {
	state, err := e.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}

	if state.Status != core.StatusAwaitingInput || len(state.Pending) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, core.ErrNoPendingRequests)
	}

	for id := range responses {
		if _, ok := state.PendingByID(id); !ok {
			return nil, fmt.Errorf("request %s: %w", id, core.ErrUnknownPendingRequest)
		}
	}
	for _, req := range state.Pending {
		if _, ok := responses[req.ID]; !ok {
			return nil, fmt.Errorf("request %s: %w", req.ID, core.ErrUnresolvedPendingRequest)
		}
	}

	// Validation passed; mutate the loaded clone only from here on.
	resumeFrom := state.Pending[len(state.Pending)-1].From
	for _, req := range state.Pending {
		state.Conversation = append(state.Conversation, core.NewUserResponse(responses[req.ID], req.From))
	}
	state.Pending = nil
	state.Current = resumeFrom
	state.Status = core.StatusRunning

	events, err := e.launch(ctx, state)
	if err != nil {
		return nil, err
	}

	e.metrics.RunResumed()
	e.logger.Info("run resumed", "run_id", runID, "participant", resumeFrom)

	return events, nil
}

// Status reports the run's current status. Runs being actively driven are
// Running; suspended and terminal runs are answered from the run store.
func (e *Engine) Status(ctx context.Context, runID string) (core.RunStatus, error) {
	e.mu.Lock()
	_, active := e.activeRuns[runID]
	e.mu.Unlock()
	if active {
		return core.StatusRunning, nil
	}

	state, err := e.store.Get(ctx, runID)
	if err != nil {
		return "", err
	}
	return state.Status, nil
}

// Cancel abandons an actively running run. The run transitions to Failed
// with core.ErrCancelled; it is never left silently running. Suspended runs
// are not active and cannot be cancelled, only resumed or abandoned by
// deleting them from the store.
func (e *Engine) Cancel(runID string) error {
	e.mu.Lock()
	cancel, ok := e.activeRuns[runID]
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("run %s: %w", runID, core.ErrRunNotFound)
	}

	cancel()
	return nil
}

// launch registers the run as active and starts the driving goroutine. It
// rejects a run that is already being driven so two resumptions can never
// race over the same state.
func (e *Engine) launch(ctx context.Context, state *core.RunState) (<-chan core.Event, error) {
	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	if _, exists := e.activeRuns[state.ID]; exists {
		e.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("run %s is already being driven", state.ID)
	}
	e.activeRuns[state.ID] = cancel
	e.mu.Unlock()

	events := make(chan core.Event, e.config.EventBufferSize)

	go func() {
		// Deregister before closing the channel so a consumer that drained
		// the stream observes the run as no longer active.
		defer func() {
			cancel()
			e.mu.Lock()
			delete(e.activeRuns, state.ID)
			e.mu.Unlock()
			close(events)
		}()

		e.drive(runCtx, state, events)
	}()

	return events, nil
}

// drive executes the turn loop for one external turn: from Running until the
// run suspends, completes or fails. It owns state exclusively.
func (e *Engine) drive(ctx context.Context, state *core.RunState, events chan<- core.Event) {
	e.emit(ctx, events, core.NewStatusEvent(state.ID, core.StatusRunning))

	hops := 0

	for {
		if ctx.Err() != nil {
			e.fail(ctx, state, events, state.Current, core.ErrCancelled)
			return
		}

		// Evaluated once per completed turn, against the conversation tail.
		// This covers both the initial message and freshly appended resume
		// responses before any participant is invoked again.
		if e.stop(state.Conversation) {
			e.complete(ctx, state, events)
			return
		}

		p := e.participants[state.Current]
		e.metrics.Turn(state.Current)

		outcome, err := e.invoke(ctx, p, state.Conversation)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrParticipantTimeout):
				// Degrade locally: the run continues with a diagnostic reply.
				e.logger.Warn("participant timed out", "run_id", state.ID, "participant", state.Current)
				outcome = core.Reply{Text: fmt.Sprintf("[%s] did not respond in time", state.Current)}
			case ctx.Err() != nil:
				e.fail(ctx, state, events, state.Current, core.ErrCancelled)
				return
			default:
				e.fail(ctx, state, events, state.Current, &core.ParticipantFailureError{Participant: state.Current, Err: err})
				return
			}
		}

		switch o := outcome.(type) {
		case core.Reply:
			state.Conversation = append(state.Conversation, core.NewAssistantMessage(state.Current, o.Text))

			if e.stop(state.Conversation) {
				e.complete(ctx, state, events)
				return
			}

			succ := e.graph.AllowedSuccessors(state.Current)
			if e.config.AutoAdvance && len(succ) == 1 && succ[0] != state.Current {
				// Silent internal hop: an orchestrator immediately delegating
				// to its sole successor.
				if !e.hop(ctx, state, events, succ[0], &hops) {
					return
				}
				continue
			}

			if state.Current == e.graph.Coordinator() {
				// The coordinator replied and routing is ambiguous: ask the
				// human what to do next.
				e.suspend(ctx, state, events, core.PendingRequest{
					ID:     core.NewID(),
					Prompt: o.Text,
					From:   state.Current,
				})
				return
			}

			// A non-coordinator stays current and speaks again (e.g. a reply
			// followed by its own input request). Bounded like a transition
			// so a participant that only ever replies cannot spin forever.
			hops++
			if hops > e.config.HopLimit {
				e.fail(ctx, state, events, state.Current,
					fmt.Errorf("%d hops without user input: %w", hops, core.ErrRoutingLoopDetected))
				return
			}

		case core.Handoff:
			if !e.graph.Allows(state.Current, o.Target) {
				e.logger.Error("unauthorized handoff", "run_id", state.ID, "from", state.Current, "to", o.Target)
				e.fail(ctx, state, events, state.Current,
					fmt.Errorf("%s -> %s: %w", state.Current, o.Target, core.ErrUnauthorizedHandoff))
				return
			}
			if !e.hop(ctx, state, events, o.Target, &hops) {
				return
			}

		case core.InputRequest:
			e.suspend(ctx, state, events, core.PendingRequest{
				ID:     core.NewID(),
				Prompt: o.Prompt,
				From:   state.Current,
			})
			return

		default:
			e.fail(ctx, state, events, state.Current,
				&core.ParticipantFailureError{Participant: state.Current, Err: fmt.Errorf("invalid outcome %T", outcome)})
			return
		}
	}
}

// invoke runs one participant invocation under the configured deadline. A
// deadline hit that was not caused by the run context is normalized to
// core.ErrParticipantTimeout.
func (e *Engine) invoke(ctx context.Context, p core.Participant, conv core.Conversation) (core.Outcome, error) {
	invokeCtx := ctx
	if e.config.ParticipantTimeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, e.config.ParticipantTimeout)
		defer cancel()
	}

	outcome, err := p.Invoke(invokeCtx, conv.Clone())
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, core.ErrParticipantTimeout
	}
	return outcome, err
}

// hop applies one routing transition, bounded by the hop limit. It reports
// whether the run may continue.
func (e *Engine) hop(ctx context.Context, state *core.RunState, events chan<- core.Event, target string, hops *int) bool {
	*hops++
	if *hops > e.config.HopLimit {
		e.fail(ctx, state, events, state.Current,
			fmt.Errorf("%d hops without user input: %w", *hops, core.ErrRoutingLoopDetected))
		return false
	}

	from := state.Current
	state.Current = target
	e.metrics.Handoff(from, target)
	e.logger.Debug("handoff", "run_id", state.ID, "from", from, "to", target)
	e.emit(ctx, events, core.NewHandoffEvent(state.ID, from, target))
	return true
}

// suspend parks the run on a pending request and persists it for Resume.
func (e *Engine) suspend(ctx context.Context, state *core.RunState, events chan<- core.Event, req core.PendingRequest) {
	state.Status = core.StatusAwaitingInput
	state.Pending = append(state.Pending, req)
	state.Updated = time.Now().UTC()

	e.persist(state)
	e.metrics.RunSuspended()
	e.logger.Info("run awaiting input", "run_id", state.ID, "request_id", req.ID, "participant", req.From)

	e.emit(ctx, events, core.NewStatusEvent(state.ID, core.StatusAwaitingInput))
	e.emit(ctx, events, core.NewPendingInputEvent(state.ID, req, state.Conversation))
}

// complete finishes the run and emits the full conversation as its output.
func (e *Engine) complete(ctx context.Context, state *core.RunState, events chan<- core.Event) {
	state.Status = core.StatusCompleted
	state.Pending = nil
	state.Updated = time.Now().UTC()

	e.persist(state)
	e.metrics.RunCompleted()
	e.logger.Info("run completed", "run_id", state.ID, "messages", len(state.Conversation))

	e.emit(ctx, events, core.NewStatusEvent(state.ID, core.StatusCompleted))
	e.emit(ctx, events, core.NewRunCompletedEvent(state.ID, state.Conversation))
}

// fail terminates the run, recording the participant, the reason and the
// conversation tail for the caller.
func (e *Engine) fail(ctx context.Context, state *core.RunState, events chan<- core.Event, participant string, reason error) {
	state.Status = core.StatusFailed
	state.Pending = nil
	state.FailReason = reason.Error()
	state.Updated = time.Now().UTC()

	e.persist(state)
	e.metrics.RunFailed(failureLabel(reason))
	e.logger.Error("run failed", "run_id", state.ID, "participant", participant, "reason", reason)

	tail := state.Conversation
	if n := e.config.FailureContextMessages; n > 0 && len(tail) > n {
		tail = tail[len(tail)-n:]
	}

	e.emit(ctx, events, core.NewStatusEvent(state.ID, core.StatusFailed))
	e.emit(ctx, events, core.NewRunFailedEvent(state.ID, core.Failure{
		Participant:  participant,
		Reason:       reason.Error(),
		LastMessages: tail.Clone(),
	}))
}

// persist saves suspended/terminal state. Store errors are logged, not
// surfaced: the run outcome already happened and the event stream reports it.
func (e *Engine) persist(state *core.RunState) {
	if err := e.store.Save(context.Background(), state); err != nil {
		e.logger.Error("failed to persist run state", "run_id", state.ID, "error", err)
	}
}

// emit forwards an event unless the run context was abandoned. Cancellation
// events themselves bypass the context check so the terminal outcome is
// observable whenever the consumer is still draining.
func (e *Engine) emit(ctx context.Context, events chan<- core.Event, ev core.Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
		// Buffered channel full and consumer gone; drop rather than leak.
		select {
		case events <- ev:
		default:
		}
	}
}

// failureLabel maps a terminal error to a stable metrics label.
func failureLabel(err error) string {
	switch {
	case errors.Is(err, core.ErrCancelled):
		return "cancelled"
	case errors.Is(err, core.ErrUnauthorizedHandoff):
		return "unauthorized_handoff"
	case errors.Is(err, core.ErrRoutingLoopDetected):
		return "routing_loop"
	default:
		return "participant_failure"
	}
}
