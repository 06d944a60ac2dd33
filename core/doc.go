// Package core defines the shared value types and contracts of the
// handoff-routing workflow engine: conversations and messages, participant
// outcomes, run state, pending input requests, engine events and the
// termination condition. Higher layers (graph, engine, stream, runstore)
// depend only on this package, keeping the dependency graph acyclic.
package core
