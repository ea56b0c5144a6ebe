package place

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bitforge/internal/ctxlog"
)

func testCtx() context.Context {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

// chainProblem builds a small but fully representative instance: a loop
// chain, an aggregator pair, a PE fed by a loop, and a read stream fed
// by the PE.
func chainProblem(t *testing.T) *Problem {
	t.Helper()
	p := NewProblem()
	p.AddNode("a", ClassLoop)
	p.AddNode("b", ClassLoop)
	p.AddNode("g", ClassGroup)
	require.NoError(t, p.AddAlias("g.row", ClassRowAgg, "g"))
	require.NoError(t, p.AddAlias("g.col", ClassColAgg, "g"))
	p.AddNode("x", ClassPE)
	p.AddNode("r", ClassReadStream)

	for _, e := range []Edge{
		{"a", "b"},
		{"a", "g.row"},
		{"g.row", "g.col"},
		{"b", "x"},
		{"x", "r"},
	} {
		require.NoError(t, p.AddEdge(e.Src, e.Dst))
	}
	return p
}

func TestAllocate(t *testing.T) {
	t.Run("fills every slot-owning node in declaration order", func(t *testing.T) {
		p := chainProblem(t)
		pl, err := p.Allocate(Placement{}, false)
		require.NoError(t, err)

		assert.Equal(t, 0, pl["a"])
		assert.Equal(t, 1, pl["b"])
		assert.Equal(t, 0, pl["g"])
		assert.Equal(t, 0, pl["x"])
		assert.Equal(t, 0, pl["r"])

		// Aliases resolve through the parent, never own a slot.
		slot, ok := p.SlotOf(pl, "g.col")
		require.True(t, ok)
		assert.Equal(t, 0, slot)
		_, owns := pl["g.col"]
		assert.False(t, owns)
	})

	t.Run("keeps pre-assigned slots", func(t *testing.T) {
		p := chainProblem(t)
		pl, err := p.Allocate(Placement{"a": 5}, false)
		require.NoError(t, err)
		assert.Equal(t, 5, pl["a"])
		assert.Equal(t, 0, pl["b"])
	})

	t.Run("does not mutate its input", func(t *testing.T) {
		p := chainProblem(t)
		in := Placement{"a": 5}
		_, err := p.Allocate(in, false)
		require.NoError(t, err)
		assert.Equal(t, Placement{"a": 5}, in)
	})

	t.Run("classless nodes get sequential placeholders", func(t *testing.T) {
		p := NewProblem()
		p.AddNode("m0", ClassNone)
		p.AddNode("m1", ClassNone)
		pl, err := p.Allocate(Placement{}, false)
		require.NoError(t, err)
		assert.Equal(t, 0, pl["m0"])
		assert.Equal(t, 1, pl["m1"])
	})

	t.Run("pool exhaustion is an error", func(t *testing.T) {
		p := NewProblem()
		p.AddNode("w0", ClassWriteStream)
		p.AddNode("w1", ClassWriteStream)
		_, err := p.Allocate(Placement{}, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pool exhausted")
	})
}

func TestCostAndViolations(t *testing.T) {
	p := chainProblem(t)

	t.Run("admissible placement has zero cost", func(t *testing.T) {
		pl := Placement{"a": 2, "b": 3, "g": 1, "x": 3, "r": 1}
		assert.Zero(t, p.Cost(pl))
		assert.Empty(t, p.Violations(pl))
	})

	t.Run("each broken edge is reported with its penalty", func(t *testing.T) {
		// Moving the chained loop four slots away breaks a->b and a->g.row.
		pl := Placement{"a": 7, "b": 3, "g": 1, "x": 3, "r": 1}
		vs := p.Violations(pl)
		require.Len(t, vs, 2)
		assert.Equal(t, Edge{"a", "b"}, vs[0].Edge)
		assert.Equal(t, 2, vs[0].Penalty)
		assert.Equal(t, Edge{"a", "g.row"}, vs[1].Edge)
		assert.Equal(t, 2, vs[1].Penalty)
		assert.Equal(t, 4, p.Cost(pl))
	})

	t.Run("unassigned endpoints contribute nothing", func(t *testing.T) {
		assert.Zero(t, p.Cost(Placement{"a": 7}))
	})
}

func TestSearchExact(t *testing.T) {
	t.Run("finds an admissible placement", func(t *testing.T) {
		p := chainProblem(t)
		pl, err := p.SearchExact(testCtx(), nil, 0)
		require.NoError(t, err)

		pl, err = p.Allocate(pl, false)
		require.NoError(t, err)
		assert.Zero(t, p.Cost(pl))
		assert.Empty(t, p.Violations(pl))
	})

	t.Run("honors the hint slot when it is consistent", func(t *testing.T) {
		p := chainProblem(t)
		pl, err := p.SearchExact(testCtx(), Placement{"a": 2, "b": 3}, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, pl["a"])
		assert.Equal(t, 3, pl["b"])
	})

	t.Run("reports infeasible instances", func(t *testing.T) {
		// A loop chained to itself can never satisfy the no-self-offset
		// rule.
		p := NewProblem()
		p.AddNode("a", ClassLoop)
		require.NoError(t, p.AddEdge("a", "a"))
		_, err := p.SearchExact(testCtx(), nil, 0)
		assert.ErrorIs(t, err, ErrNoPlacement)
	})
}

func TestSearchAnneal(t *testing.T) {
	t.Run("reaches zero cost on a feasible instance", func(t *testing.T) {
		p := chainProblem(t)
		pl, cost, err := p.SearchAnneal(testCtx(), nil, AnnealOptions{Seed: 1, Restarts: 3})
		require.NoError(t, err)
		assert.Zero(t, cost)
		assert.Zero(t, p.Cost(pl))
	})

	t.Run("repairs a violating hint", func(t *testing.T) {
		// A group sourcing a loop pinned far outside its window; the
		// search must relocate one endpoint.
		p := NewProblem()
		for i := 0; i < 7; i++ {
			p.AddNode(fmt.Sprintf("l%d", i), ClassLoop)
		}
		p.AddNode("g", ClassGroup)
		require.NoError(t, p.AddAlias("g.row", ClassRowAgg, "g"))
		require.NoError(t, p.AddEdge("l6", "g.row"))

		hint := Placement{"l6": 6, "g": 0}
		require.Equal(t, 3, p.Cost(hint))

		pl, cost, err := p.SearchAnneal(testCtx(), hint, AnnealOptions{Seed: 1, Restarts: 3})
		require.NoError(t, err)
		assert.Zero(t, cost)
		assert.Zero(t, p.Cost(pl))
	})

	t.Run("same seed reproduces the same placement", func(t *testing.T) {
		p := chainProblem(t)
		opts := AnnealOptions{Seed: 42, Iterations: 500}
		first, _, err := p.SearchAnneal(testCtx(), nil, opts)
		require.NoError(t, err)
		second, _, err := p.SearchAnneal(testCtx(), nil, opts)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}
