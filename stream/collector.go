// Package stream provides a convenience consumer for the engine's per-run
// event channels. A Collector drains one finite event sequence and classifies
// it: status transitions, pending input requests, the final conversation or
// the failure, plus the "replies since the last user message" view used to
// present intermediate participant chatter to a human.
package stream

import "github.com/hupe1980/handoffmesh/core"

// Collector holds the classified result of one drained event stream. It is
// not restartable; collect a fresh channel after every Start or Resume.
type Collector struct {
	events   []core.Event
	status   core.RunStatus
	pending  []core.PendingRequest
	snapshot core.Conversation
	final    core.Conversation
	failure  *core.Failure
}

// Collect drains the channel until it is closed and classifies every event.
// It blocks until the engine suspends the run or reaches a terminal state.
func Collect(events <-chan core.Event) *Collector {
	c := &Collector{}
	for ev := range events {
		c.events = append(c.events, ev)

		switch ev.Type {
		case core.EventStatusChanged:
			c.status = ev.Status
		case core.EventPendingInput:
			if ev.Request != nil {
				c.pending = append(c.pending, *ev.Request)
			}
			c.snapshot = ev.Conversation
		case core.EventRunCompleted:
			c.final = ev.Conversation
			c.snapshot = ev.Conversation
		case core.EventRunFailed:
			c.failure = ev.Failure
		}
	}
	return c
}

// Events returns all drained events in occurrence order.
func (c *Collector) Events() []core.Event { return c.events }

// Status returns the last observed run status.
func (c *Collector) Status() core.RunStatus { return c.status }

// PendingRequests returns the input requests the run suspended on. An empty
// result means the run reached a terminal state.
func (c *Collector) PendingRequests() []core.PendingRequest { return c.pending }

// FinalConversation returns the completed run's full conversation.
func (c *Collector) FinalConversation() (core.Conversation, bool) {
	return c.final, c.final != nil
}

// Failure returns the failure context of a failed run.
func (c *Collector) Failure() (*core.Failure, bool) {
	return c.failure, c.failure != nil
}

// RepliesSinceLastUser returns the participant replies that follow the most
// recent user message, based on the latest conversation snapshot observed in
// the stream.
func (c *Collector) RepliesSinceLastUser() []core.Message {
	return c.snapshot.SinceLastUser()
}
