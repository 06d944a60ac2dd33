package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// A chain rooted at the coordinator is always a valid graph, and the built
// graph preserves exactly the declared edges.
func TestBuilderChainAlwaysBuilds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(rt, "participants")

		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("p%d", i)
		}

		b := NewBuilder().SetCoordinator(ids[0]).AddParticipant(ids...)
		for i := 0; i+1 < n; i++ {
			b.AddHandoff(ids[i], ids[i+1])
		}

		g, err := b.Build()
		require.NoError(rt, err)
		require.Equal(rt, ids[0], g.Coordinator())
		require.Equal(rt, ids, g.Participants())

		for i := 0; i+1 < n; i++ {
			require.True(rt, g.Allows(ids[i], ids[i+1]))
			require.False(rt, g.Allows(ids[i+1], ids[i]))
		}
		require.Empty(rt, g.AllowedSuccessors(ids[n-1]))
	})
}

// An edge to an undeclared participant always invalidates the graph, no
// matter where it is attached.
func TestBuilderUnknownTargetAlwaysFails(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(rt, "participants")
		from := rapid.IntRange(0, n-1).Draw(rt, "from")

		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("p%d", i)
		}

		b := NewBuilder().SetCoordinator(ids[0]).AddParticipant(ids...)
		for i := 0; i+1 < n; i++ {
			b.AddHandoff(ids[i], ids[i+1])
		}
		b.AddHandoff(ids[from], "ghost")

		_, err := b.Build()

		var igErr *InvalidGraphError
		require.ErrorAs(rt, err, &igErr)
	})
}
