package graph

import "fmt"

// Builder accumulates participants and handoff edges, then validates the
// whole configuration in one pass on Build. All methods return the Builder
// for chaining; Builder is not safe for concurrent use.
type Builder struct {
	order       []string
	known       map[string]bool
	edges       map[string][]string
	coordinator string
	selfAllowed map[string]bool
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		known:       make(map[string]bool),
		edges:       make(map[string][]string),
		selfAllowed: make(map[string]bool),
	}
}

// AddParticipant registers one or more participant ids. Duplicates are ignored.
func (b *Builder) AddParticipant(ids ...string) *Builder {
	for _, id := range ids {
		if b.known[id] {
			continue
		}
		b.known[id] = true
		b.order = append(b.order, id)
	}
	return b
}

// SetCoordinator designates the entry-point participant.
func (b *Builder) SetCoordinator(id string) *Builder {
	b.coordinator = id
	return b
}

// AddHandoff permits from to hand control to each of the given targets.
// Duplicate edges are ignored; endpoints are checked at Build, not here.
func (b *Builder) AddHandoff(from string, to ...string) *Builder {
	for _, target := range to {
		if b.hasEdge(from, target) {
			continue
		}
		b.edges[from] = append(b.edges[from], target)
	}
	return b
}

// AllowSelfHandoff declares that the participant models multi-turn internal
// dialogue, permitting an unconditional self-loop that would otherwise be
// rejected at Build.
func (b *Builder) AllowSelfHandoff(id string) *Builder {
	b.selfAllowed[id] = true
	return b
}

func (b *Builder) hasEdge(from, to string) bool {
	for _, t := range b.edges[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Build validates the accumulated configuration and returns an immutable
// Graph. Violations are collected into a single *InvalidGraphError so the
// caller can fix the whole configuration at once.
func (b *Builder) Build() (*Graph, error) {
	var reasons []string

	if b.coordinator == "" {
		reasons = append(reasons, "no coordinator set")
	} else if !b.known[b.coordinator] {
		reasons = append(reasons, fmt.Sprintf("coordinator %q is not a registered participant", b.coordinator))
	}

	if len(b.order) == 0 {
		reasons = append(reasons, "no participants registered")
	}

	for _, from := range b.order {
		for _, to := range b.edges[from] {
			if !b.known[to] {
				reasons = append(reasons, fmt.Sprintf("handoff %s -> %s references unknown participant %q", from, to, to))
			}
		}
	}
	for from := range b.edges {
		if !b.known[from] {
			reasons = append(reasons, fmt.Sprintf("handoff source %q is not a registered participant", from))
		}
	}

	// An immediate unconditional self-loop (a participant whose sole
	// successor is itself) deadlocks routing unless explicitly declared as
	// multi-turn internal dialogue.
	for _, id := range b.order {
		succ := b.edges[id]
		if len(succ) == 1 && succ[0] == id && !b.selfAllowed[id] {
			reasons = append(reasons, fmt.Sprintf("participant %q has itself as sole successor; declare AllowSelfHandoff if intended", id))
		}
	}

	if len(reasons) == 0 {
		for _, id := range b.unreachable() {
			reasons = append(reasons, fmt.Sprintf("participant %q is not reachable from the coordinator", id))
		}
	}

	if len(reasons) > 0 {
		return nil, &InvalidGraphError{Reasons: reasons}
	}

	g := &Graph{
		coordinator: b.coordinator,
		order:       make([]string, len(b.order)),
		successors:  make(map[string][]string, len(b.order)),
	}
	copy(g.order, b.order)
	for _, id := range b.order {
		succ := make([]string, len(b.edges[id]))
		copy(succ, b.edges[id])
		g.successors[id] = succ
	}

	return g, nil
}

// unreachable returns participants with no path from the coordinator, in
// registration order.
func (b *Builder) unreachable() []string {
	visited := map[string]bool{b.coordinator: true}
	queue := []string{b.coordinator}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range b.edges[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	var out []string
	for _, id := range b.order {
		if !visited[id] {
			out = append(out, id)
		}
	}
	return out
}
