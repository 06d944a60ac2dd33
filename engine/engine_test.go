package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/handoffmesh/core"
	"github.com/hupe1980/handoffmesh/graph"
	"github.com/hupe1980/handoffmesh/participant"
	"github.com/hupe1980/handoffmesh/runstore"
	"github.com/hupe1980/handoffmesh/stream"
)

// coordinator -> support; support is terminal.
func chainGraph(t *testing.T) *graph.Graph {
	t.Helper()

	g, err := graph.NewBuilder().
		AddParticipant("coordinator", "support").
		SetCoordinator("coordinator").
		AddHandoff("coordinator", "support").
		Build()
	require.NoError(t, err)
	return g
}

func soloGraph(t *testing.T) *graph.Graph {
	t.Helper()

	g, err := graph.NewBuilder().
		AddParticipant("coordinator").
		SetCoordinator("coordinator").
		Build()
	require.NoError(t, err)
	return g
}

func TestNewValidation(t *testing.T) {
	g := chainGraph(t)

	coordinator := participant.NewScripted("coordinator", nil)
	support := participant.NewScripted("support", nil)

	t.Run("all participants wired", func(t *testing.T) {
		eng, err := New(g, nil, []core.Participant{coordinator, support})
		require.NoError(t, err)
		assert.NotNil(t, eng)
	})

	t.Run("missing implementation", func(t *testing.T) {
		_, err := New(g, nil, []core.Participant{coordinator})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no implementation registered for participant "support"`)
	})

	t.Run("implementation outside the graph", func(t *testing.T) {
		ghost := participant.NewScripted("ghost", nil)
		_, err := New(g, nil, []core.Participant{coordinator, support, ghost})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `participant "ghost" is not part of the routing graph`)
	})

	t.Run("duplicate implementation", func(t *testing.T) {
		_, err := New(g, nil, []core.Participant{coordinator, support, participant.NewScripted("support", nil)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `duplicate participant "support"`)
	})
}

// A full external-turn round trip: the coordinator replies and silently
// advances to its sole successor, support replies and then asks for input,
// the run suspends, and the user's exit phrase completes it on resume.
func TestRunCompletesOnExitPhrase(t *testing.T) {
	g := chainGraph(t)

	coordinator := participant.NewScripted("coordinator", []core.Outcome{
		core.Reply{Text: "routing you to support"},
	})
	support := participant.NewScripted("support", []core.Outcome{
		core.Reply{Text: "how can I help?"},
		core.InputRequest{Prompt: "how can I help?"},
	})

	eng, err := New(g, nil, []core.Participant{coordinator, support})
	require.NoError(t, err)

	ctx := context.Background()

	runID, events, err := eng.Start(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	c := stream.Collect(events)
	require.Equal(t, core.StatusAwaitingInput, c.Status())
	require.Len(t, c.PendingRequests(), 1)

	req := c.PendingRequests()[0]
	assert.Equal(t, "support", req.From)
	assert.Equal(t, "how can I help?", req.Prompt)

	assert.Equal(t, 1, countEvents(c, core.EventHandoffOccurred))
	assert.Len(t, c.RepliesSinceLastUser(), 2)

	status, err := eng.Status(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusAwaitingInput, status)

	events, err = eng.Resume(ctx, runID, map[string]string{req.ID: "gracias, thanks!"})
	require.NoError(t, err)

	c = stream.Collect(events)
	assert.Equal(t, core.StatusCompleted, c.Status())
	assert.Empty(t, c.PendingRequests())

	final, ok := c.FinalConversation()
	require.True(t, ok)
	require.Len(t, final, 3)
	assert.Equal(t, "coordinator", final[0].Author)
	assert.Equal(t, "support", final[1].Author)
	assert.Equal(t, core.RoleUser, final[2].Role)
	assert.Equal(t, "support", final[2].AnswersTo)

	assert.Equal(t, 1, coordinator.Invocations())
	assert.Equal(t, 2, support.Invocations())

	status, err = eng.Status(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, status)

	// Terminal runs cannot be resumed.
	_, err = eng.Resume(ctx, runID, map[string]string{req.ID: "again"})
	assert.ErrorIs(t, err, core.ErrNoPendingRequests)
}

func TestStartWithInitialExitPhrase(t *testing.T) {
	g := soloGraph(t)
	coordinator := participant.NewScripted("coordinator", nil)

	eng, err := New(g, nil, []core.Participant{coordinator})
	require.NoError(t, err)

	_, events, err := eng.Start(context.Background(), "nothing to do, bye")
	require.NoError(t, err)

	c := stream.Collect(events)
	assert.Equal(t, core.StatusCompleted, c.Status())

	final, ok := c.FinalConversation()
	require.True(t, ok)
	assert.Len(t, final, 1)
	assert.Equal(t, 0, coordinator.Invocations())
}

func TestUnauthorizedHandoffFailsRun(t *testing.T) {
	g := chainGraph(t)

	coordinator := participant.NewScripted("coordinator", []core.Outcome{
		core.Reply{Text: "routing you to support"},
	})
	support := participant.NewScripted("support", []core.Outcome{
		core.Handoff{Target: "ticketing"},
	})

	eng, err := New(g, nil, []core.Participant{coordinator, support})
	require.NoError(t, err)

	ctx := context.Background()

	runID, events, err := eng.Start(ctx, "I have an issue")
	require.NoError(t, err)

	c := stream.Collect(events)
	assert.Equal(t, core.StatusFailed, c.Status())

	failure, ok := c.Failure()
	require.True(t, ok)
	assert.Equal(t, "support", failure.Participant)
	assert.Contains(t, failure.Reason, "unauthorized handoff")
	assert.Contains(t, failure.Reason, "support -> ticketing")

	// The rejected handoff leaves the conversation untouched.
	require.Len(t, failure.LastMessages, 2)
	assert.Equal(t, "coordinator", failure.LastMessages[1].Author)

	status, err := eng.Status(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, status)
}

func TestRoutingLoopDetection(t *testing.T) {
	g, err := graph.NewBuilder().
		AddParticipant("ping", "pong").
		SetCoordinator("ping").
		AddHandoff("ping", "pong").
		AddHandoff("pong", "ping").
		Build()
	require.NoError(t, err)

	loop := func(o *participant.ScriptedOptions) { o.Loop = true }
	ping := participant.NewScripted("ping", []core.Outcome{core.Handoff{Target: "pong"}}, loop)
	pong := participant.NewScripted("pong", []core.Outcome{core.Handoff{Target: "ping"}}, loop)

	eng, err := New(g, nil, []core.Participant{ping, pong}, func(o *Options) {
		o.Config.HopLimit = 6
	})
	require.NoError(t, err)

	_, events, err := eng.Start(context.Background(), "go")
	require.NoError(t, err)

	c := stream.Collect(events)
	assert.Equal(t, core.StatusFailed, c.Status())

	failure, ok := c.Failure()
	require.True(t, ok)
	assert.Contains(t, failure.Reason, "routing loop detected")

	// Exactly HopLimit transitions happen before the run fails.
	assert.Equal(t, 6, countEvents(c, core.EventHandoffOccurred))
}

func TestResumeValidation(t *testing.T) {
	g := soloGraph(t)

	coordinator := participant.NewScripted("coordinator", []core.Outcome{
		core.InputRequest{Prompt: "what next?"},
		core.InputRequest{Prompt: "what next?"},
	})

	eng, err := New(g, nil, []core.Participant{coordinator})
	require.NoError(t, err)

	ctx := context.Background()

	runID, events, err := eng.Start(ctx, "hello")
	require.NoError(t, err)

	c := stream.Collect(events)
	require.Len(t, c.PendingRequests(), 1)
	req := c.PendingRequests()[0]

	t.Run("unknown run", func(t *testing.T) {
		_, err := eng.Resume(ctx, "missing", nil)
		assert.ErrorIs(t, err, core.ErrRunNotFound)
	})

	t.Run("unknown request id", func(t *testing.T) {
		_, err := eng.Resume(ctx, runID, map[string]string{"bogus": "hi"})
		assert.ErrorIs(t, err, core.ErrUnknownPendingRequest)
	})

	t.Run("missing response", func(t *testing.T) {
		_, err := eng.Resume(ctx, runID, map[string]string{})
		assert.ErrorIs(t, err, core.ErrUnresolvedPendingRequest)
	})

	t.Run("state untouched by rejected resumes", func(t *testing.T) {
		status, err := eng.Status(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, core.StatusAwaitingInput, status)

		events, err := eng.Resume(ctx, runID, map[string]string{req.ID: "carry on"})
		require.NoError(t, err)

		c := stream.Collect(events)
		assert.Equal(t, core.StatusAwaitingInput, c.Status())
		require.Len(t, c.PendingRequests(), 1)
		assert.NotEqual(t, req.ID, c.PendingRequests()[0].ID)
	})
}

func TestParticipantTimeoutDowngradedToReply(t *testing.T) {
	g := soloGraph(t)

	stuck := participant.NewFunc("coordinator", func(ctx context.Context, _ core.Conversation) (core.Outcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	eng, err := New(g, nil, []core.Participant{stuck}, func(o *Options) {
		o.Config.ParticipantTimeout = 20 * time.Millisecond
	})
	require.NoError(t, err)

	_, events, err := eng.Start(context.Background(), "hello")
	require.NoError(t, err)

	c := stream.Collect(events)

	// The timeout is recovered locally: the run suspends on the diagnostic
	// reply instead of failing.
	require.Equal(t, core.StatusAwaitingInput, c.Status())
	require.Len(t, c.PendingRequests(), 1)
	assert.Equal(t, "[coordinator] did not respond in time", c.PendingRequests()[0].Prompt)

	replies := c.RepliesSinceLastUser()
	require.Len(t, replies, 1)
	assert.Equal(t, "coordinator", replies[0].Author)
}

func TestCancel(t *testing.T) {
	g := soloGraph(t)

	blocked := participant.NewFunc("coordinator", func(ctx context.Context, _ core.Conversation) (core.Outcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	eng, err := New(g, nil, []core.Participant{blocked}, func(o *Options) {
		o.Config.ParticipantTimeout = 0
	})
	require.NoError(t, err)

	ctx := context.Background()

	runID, events, err := eng.Start(ctx, "hello")
	require.NoError(t, err)

	require.NoError(t, eng.Cancel(runID))

	c := stream.Collect(events)
	assert.Equal(t, core.StatusFailed, c.Status())

	failure, ok := c.Failure()
	require.True(t, ok)
	assert.Contains(t, failure.Reason, "run cancelled")

	status, err := eng.Status(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, status)

	t.Run("unknown run", func(t *testing.T) {
		assert.ErrorIs(t, eng.Cancel("missing"), core.ErrRunNotFound)
	})

	t.Run("finished run is no longer active", func(t *testing.T) {
		assert.ErrorIs(t, eng.Cancel(runID), core.ErrRunNotFound)
	})
}

func TestAutoAdvanceDisabled(t *testing.T) {
	g := chainGraph(t)

	coordinator := participant.NewScripted("coordinator", []core.Outcome{
		core.Reply{Text: "I can hand you to support. Shall I?"},
	})
	support := participant.NewScripted("support", nil)

	eng, err := New(g, nil, []core.Participant{coordinator, support}, func(o *Options) {
		o.Config.AutoAdvance = false
	})
	require.NoError(t, err)

	_, events, err := eng.Start(context.Background(), "hello")
	require.NoError(t, err)

	c := stream.Collect(events)

	// Without auto-advance the coordinator's reply suspends instead of
	// silently delegating to its sole successor.
	require.Equal(t, core.StatusAwaitingInput, c.Status())
	require.Len(t, c.PendingRequests(), 1)
	assert.Equal(t, "coordinator", c.PendingRequests()[0].From)
	assert.Equal(t, 0, countEvents(c, core.EventHandoffOccurred))
	assert.Equal(t, 0, support.Invocations())
}

// The coordinator with more than one successor cannot advance silently; its
// reply becomes a question to the human.
func TestCoordinatorWithAmbiguousRoutingSuspends(t *testing.T) {
	g, err := graph.NewBuilder().
		AddParticipant("coordinator", "support", "sales").
		SetCoordinator("coordinator").
		AddHandoff("coordinator", "support", "sales").
		Build()
	require.NoError(t, err)

	coordinator := participant.NewScripted("coordinator", []core.Outcome{
		core.Reply{Text: "support or sales?"},
	})

	eng, err := New(g, nil, []core.Participant{
		coordinator,
		participant.NewScripted("support", nil),
		participant.NewScripted("sales", nil),
	})
	require.NoError(t, err)

	_, events, err := eng.Start(context.Background(), "hello")
	require.NoError(t, err)

	c := stream.Collect(events)
	require.Equal(t, core.StatusAwaitingInput, c.Status())
	require.Len(t, c.PendingRequests(), 1)
	assert.Equal(t, "support or sales?", c.PendingRequests()[0].Prompt)
}

func TestParticipantFailureFailsRun(t *testing.T) {
	g := soloGraph(t)

	faulty := participant.NewFunc("coordinator", func(context.Context, core.Conversation) (core.Outcome, error) {
		return nil, errors.New("backend unavailable")
	})

	eng, err := New(g, nil, []core.Participant{faulty})
	require.NoError(t, err)

	_, events, err := eng.Start(context.Background(), "hello")
	require.NoError(t, err)

	c := stream.Collect(events)
	assert.Equal(t, core.StatusFailed, c.Status())

	failure, ok := c.Failure()
	require.True(t, ok)
	assert.Equal(t, "coordinator", failure.Participant)
	assert.Contains(t, failure.Reason, "participant coordinator failed")
	assert.Contains(t, failure.Reason, "backend unavailable")
}

func TestFailureContextIsTrimmed(t *testing.T) {
	g := chainGraph(t)

	coordinator := participant.NewScripted("coordinator", []core.Outcome{
		core.Reply{Text: "routing you to support"},
	})
	// Replies twice, then the exhausted script faults: four messages are on
	// the conversation by the time the run fails.
	support := participant.NewScripted("support", []core.Outcome{
		core.Reply{Text: "working on it"},
		core.Reply{Text: "still working"},
	})

	eng, err := New(g, nil, []core.Participant{coordinator, support}, func(o *Options) {
		o.Config.FailureContextMessages = 2
	})
	require.NoError(t, err)

	_, events, err := eng.Start(context.Background(), "hello")
	require.NoError(t, err)

	c := stream.Collect(events)
	assert.Equal(t, core.StatusFailed, c.Status())

	failure, ok := c.Failure()
	require.True(t, ok)
	assert.Equal(t, "support", failure.Participant)
	require.Len(t, failure.LastMessages, 2)
	assert.Equal(t, "working on it", failure.LastMessages[0].Text)
	assert.Equal(t, "still working", failure.LastMessages[1].Text)
}

func TestStatusUnknownRun(t *testing.T) {
	g := soloGraph(t)

	eng, err := New(g, nil, []core.Participant{participant.NewScripted("coordinator", nil)})
	require.NoError(t, err)

	_, err = eng.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrRunNotFound)
}

// Suspended state persisted by one engine is resumable by another sharing
// the same store, covering hosts that serve Start and Resume from different
// processes.
func TestResumeAcrossEngines(t *testing.T) {
	store := runstore.NewInMemoryStore()
	ctx := context.Background()

	newEngine := func(t *testing.T) *Engine {
		t.Helper()

		g := soloGraph(t)
		coordinator := participant.NewScripted("coordinator", []core.Outcome{
			core.InputRequest{Prompt: "what next?"},
		})

		eng, err := New(g, nil, []core.Participant{coordinator}, func(o *Options) {
			o.RunStore = store
		})
		require.NoError(t, err)
		return eng
	}

	first := newEngine(t)

	runID, events, err := first.Start(ctx, "hello")
	require.NoError(t, err)

	c := stream.Collect(events)
	require.Len(t, c.PendingRequests(), 1)
	req := c.PendingRequests()[0]

	second := newEngine(t)

	events, err = second.Resume(ctx, runID, map[string]string{req.ID: "all done, thanks"})
	require.NoError(t, err)

	c = stream.Collect(events)
	assert.Equal(t, core.StatusCompleted, c.Status())

	final, ok := c.FinalConversation()
	require.True(t, ok)
	assert.Len(t, final, 2)
}

func countEvents(c *stream.Collector, typ core.EventType) int {
	n := 0
	for _, ev := range c.Events() {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
