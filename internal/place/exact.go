package place

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/bitforge/internal/ctxlog"
)

// ErrNoPlacement is returned when the backtracking search exhausts the
// slot space without finding a constraint-satisfying assignment.
var ErrNoPlacement = errors.New("place: no admissible placement exists")

// ErrTimeout is returned when the exact search exceeds its wall-clock
// budget before completing.
var ErrTimeout = errors.New("place: exact search timed out")

// SearchExact runs a backtracking search over every node that touches at
// least one edge, returning a placement in which all adjacency
// constraints hold. The hint placement's slot for a node is tried first,
// then the remaining pool slots in order. A zero timeout means no limit.
func (p *Problem) SearchExact(ctx context.Context, hint Placement, timeout time.Duration) (Placement, error) {
	logger := ctxlog.FromContext(ctx)

	nodes := p.connectedRoots()
	logger.Debug("Exact placement search starting.", "nodes", len(nodes), "edges", len(p.edges))

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	assigned := make(Placement, len(nodes))
	used := p.usedSlots(assigned)

	var search func(i int) error
	search = func(i int) error {
		// The budget check runs once per recursive call; a search that
		// blows the budget mid-level finishes the level first.
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ErrTimeout
		}
		if i == len(nodes) {
			return nil
		}
		id := nodes[i]
		class := p.nodes[id].class
		pool := poolClass(class)

		for _, slot := range p.candidateSlots(id, hint) {
			if _, taken := used[pool][slot]; taken {
				continue
			}
			assigned[id] = slot
			if p.consistent(assigned, id) {
				used[pool][slot] = struct{}{}
				err := search(i + 1)
				if err == nil {
					return nil
				}
				delete(used[pool], slot)
				if errors.Is(err, ErrTimeout) {
					return err
				}
			}
			delete(assigned, id)
		}
		return ErrNoPlacement
	}

	if err := search(0); err != nil {
		return nil, err
	}
	logger.Debug("Exact placement search succeeded.", "assigned", len(assigned))
	return assigned.clone(), nil
}

// candidateSlots orders a node's pool with the hint slot, if any, first.
func (p *Problem) candidateSlots(id string, hint Placement) []int {
	size := PoolSize(p.nodes[id].class)
	out := make([]int, 0, size)
	cached, hasHint := hint[id]
	if hasHint && cached >= 0 && cached < size {
		out = append(out, cached)
	}
	for s := 0; s < size; s++ {
		if hasHint && s == cached {
			continue
		}
		out = append(out, s)
	}
	return out
}

// consistent checks every edge touching id whose endpoints are both
// assigned. Unassigned neighbors are checked when their turn comes.
func (p *Problem) consistent(pl Placement, id string) bool {
	for _, e := range p.edges {
		if p.root(e.Src) != id && p.root(e.Dst) != id {
			continue
		}
		srcSlot, ok := p.SlotOf(pl, e.Src)
		if !ok {
			continue
		}
		dstSlot, ok := p.SlotOf(pl, e.Dst)
		if !ok {
			continue
		}
		if !Admissible(p.nodes[e.Src].class, srcSlot, p.nodes[e.Dst].class, dstSlot) {
			return false
		}
	}
	return true
}

// sanity guard: a Problem with edges over unknown nodes cannot reach the
// searches because AddEdge validates endpoints, but alias chains created
// after edges could dangle. Validate surfaces that as an error.
func (p *Problem) Validate() error {
	for _, e := range p.edges {
		for _, id := range []string{e.Src, e.Dst} {
			if _, ok := p.nodes[p.root(id)]; !ok {
				return fmt.Errorf("place: edge endpoint %s has no slot-owning root", id)
			}
		}
	}
	return nil
}
