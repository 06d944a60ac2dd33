// Package graph provides the routing graph of a handoff workflow: a directed
// graph over participant ids describing which participants each participant
// may hand control to, with one designated coordinator as entry point.
//
// Graphs are built through a Builder that accumulates edges and performs a
// single validation pass on Build. The resulting Graph is immutable and safe
// to share read-only across concurrently executing runs.
package graph

import (
	"fmt"
	"strings"
)

// Graph is an immutable, validated routing graph. Construct via Builder.
type Graph struct {
	coordinator string
	order       []string
	successors  map[string][]string
}

// Coordinator returns the entry-point participant id.
func (g *Graph) Coordinator() string { return g.coordinator }

// Participants returns all participant ids in registration order.
func (g *Graph) Participants() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Contains reports whether the id is a participant of the graph.
func (g *Graph) Contains(id string) bool {
	_, ok := g.successors[id]
	return ok
}

// AllowedSuccessors returns the permitted handoff targets of a participant
// in registration order. The returned slice is a copy; an empty result marks
// a terminal participant.
func (g *Graph) AllowedSuccessors(id string) []string {
	succ := g.successors[id]
	out := make([]string, len(succ))
	copy(out, succ)
	return out
}

// Allows reports whether from may hand control to to.
func (g *Graph) Allows(from, to string) bool {
	for _, s := range g.successors[from] {
		if s == to {
			return true
		}
	}
	return false
}

// InvalidGraphError reports every validation failure found during Build.
// It is a construction-time error: the caller must fix configuration before
// a run starts.
type InvalidGraphError struct {
	Reasons []string
}

// Error implements the error interface.
func (e *InvalidGraphError) Error() string {
	return fmt.Sprintf("invalid routing graph: %s", strings.Join(e.Reasons, "; "))
}
