package place

import (
	"fmt"
	"sort"
)

// Edge is a directed symbolic connection between two logical nodes.
type Edge struct {
	Src, Dst string
}

type nodeInfo struct {
	id     string
	class  Class
	parent string // non-empty for alias nodes sharing the parent's slot
}

// Problem is the immutable input to a placement search: the logical
// nodes with their classes, alias relationships, and the directed edge
// set collected while modules populated. Searches never mutate the
// Problem; every step works on a Placement value.
type Problem struct {
	nodes   map[string]*nodeInfo
	order   []string
	edges   []Edge
	edgeSet map[Edge]struct{}
}

// NewProblem returns an empty placement problem.
func NewProblem() *Problem {
	return &Problem{
		nodes:   make(map[string]*nodeInfo),
		edgeSet: make(map[Edge]struct{}),
	}
}

// AddNode registers a logical node. Re-adding an existing id is a no-op
// so callers can declare nodes as they encounter them.
func (p *Problem) AddNode(id string, c Class) {
	if _, ok := p.nodes[id]; ok {
		return
	}
	p.nodes[id] = &nodeInfo{id: id, class: c}
	p.order = append(p.order, id)
}

// AddAlias registers a node that never owns a slot and instead shares
// its parent's. The parent must already be registered.
func (p *Problem) AddAlias(id string, c Class, parent string) error {
	if _, ok := p.nodes[parent]; !ok {
		return fmt.Errorf("place: alias %s references unknown parent %s", id, parent)
	}
	if _, ok := p.nodes[id]; ok {
		return nil
	}
	p.nodes[id] = &nodeInfo{id: id, class: c, parent: parent}
	p.order = append(p.order, id)
	return nil
}

// AddEdge records a directed edge once. Both endpoints must exist.
func (p *Problem) AddEdge(src, dst string) error {
	if _, ok := p.nodes[src]; !ok {
		return fmt.Errorf("place: edge source not found: %s", src)
	}
	if _, ok := p.nodes[dst]; !ok {
		return fmt.Errorf("place: edge destination not found: %s", dst)
	}
	e := Edge{Src: src, Dst: dst}
	if _, ok := p.edgeSet[e]; ok {
		return nil
	}
	p.edgeSet[e] = struct{}{}
	p.edges = append(p.edges, e)
	return nil
}

// Edges returns the recorded edges in insertion order.
func (p *Problem) Edges() []Edge {
	out := make([]Edge, len(p.edges))
	copy(out, p.edges)
	return out
}

// ClassOf returns the declared class of a node.
func (p *Problem) ClassOf(id string) (Class, bool) {
	n, ok := p.nodes[id]
	if !ok {
		return ClassNone, false
	}
	return n.class, true
}

// root follows alias parents to the slot-owning node.
func (p *Problem) root(id string) string {
	n := p.nodes[id]
	for n != nil && n.parent != "" {
		n = p.nodes[n.parent]
	}
	if n == nil {
		return id
	}
	return n.id
}

// Placement maps slot-owning node ids to physical slot indices within
// their class pools. It is a plain value: searches copy it rather than
// share it, so independent restarts cannot interfere.
type Placement map[string]int

func (pl Placement) clone() Placement {
	out := make(Placement, len(pl))
	for k, v := range pl {
		out[k] = v
	}
	return out
}

// SlotOf resolves a node (following aliases) to its assigned slot.
func (p *Problem) SlotOf(pl Placement, id string) (int, bool) {
	slot, ok := pl[p.root(id)]
	return slot, ok
}

// connectedRoots returns the slot-owning nodes touched by at least one
// edge, in first-seen order. Only these participate in constraint
// search; everything else is filled by plain allocation afterwards.
func (p *Problem) connectedRoots() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range p.edges {
		for _, id := range []string{e.Src, e.Dst} {
			r := p.root(id)
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			if PoolSize(p.nodes[r].class) > 0 {
				out = append(out, r)
			}
		}
	}
	return out
}

// Cost sums the violation penalties of every edge under a placement.
// Edges with an unassigned endpoint contribute nothing.
func (p *Problem) Cost(pl Placement) int {
	total := 0
	for _, e := range p.edges {
		total += p.edgePenalty(pl, e)
	}
	return total
}

func (p *Problem) edgePenalty(pl Placement, e Edge) int {
	srcSlot, ok := p.SlotOf(pl, e.Src)
	if !ok {
		return 0
	}
	dstSlot, ok := p.SlotOf(pl, e.Dst)
	if !ok {
		return 0
	}
	return Penalty(p.nodes[e.Src].class, srcSlot, p.nodes[e.Dst].class, dstSlot)
}

// Violation describes one edge whose placement breaks its adjacency
// constraint.
type Violation struct {
	Edge    Edge
	Penalty int
}

// Violations lists every constrained edge with nonzero penalty.
func (p *Problem) Violations(pl Placement) []Violation {
	var out []Violation
	for _, e := range p.edges {
		if pen := p.edgePenalty(pl, e); pen > 0 {
			out = append(out, Violation{Edge: e, Penalty: pen})
		}
	}
	return out
}

// Allocate assigns a slot to every still-unassigned slot-owning node in
// first-seen order, with no constraint checking. When onlyConnected is
// set, only nodes touching an edge are filled; the full pass afterwards
// completes the placement. Pool exhaustion is fatal: there is nothing
// to back out to.
func (p *Problem) Allocate(pl Placement, onlyConnected bool) (Placement, error) {
	out := pl.clone()

	connected := make(map[string]struct{})
	for _, e := range p.edges {
		connected[p.root(e.Src)] = struct{}{}
		connected[p.root(e.Dst)] = struct{}{}
	}

	used := p.usedSlots(out)

	// Placeholder slots for classless nodes continue after any already
	// assigned ones.
	nextNone := 0
	for id, slot := range out {
		if p.nodes[id].class == ClassNone && slot >= nextNone {
			nextNone = slot + 1
		}
	}

	for _, id := range p.order {
		n := p.nodes[id]
		if n.parent != "" {
			continue
		}
		if _, ok := out[id]; ok {
			continue
		}
		if onlyConnected {
			if _, ok := connected[id]; !ok {
				continue
			}
		}
		if n.class == ClassNone {
			out[id] = nextNone
			nextNone++
			continue
		}
		pool := poolClass(n.class)
		slot, err := firstFree(used[pool], PoolSize(n.class))
		if err != nil {
			return nil, fmt.Errorf("place: %s pool exhausted placing %s: %w", pool, id, err)
		}
		used[pool][slot] = struct{}{}
		out[id] = slot
	}
	return out, nil
}

func (p *Problem) usedSlots(pl Placement) map[Class]map[int]struct{} {
	used := make(map[Class]map[int]struct{})
	for _, c := range []Class{ClassLoop, ClassGroup, ClassPE, ClassReadStream, ClassWriteStream} {
		used[c] = make(map[int]struct{})
	}
	for id, slot := range pl {
		n := p.nodes[id]
		if n == nil || n.class == ClassNone {
			continue
		}
		used[poolClass(n.class)][slot] = struct{}{}
	}
	return used
}

func firstFree(used map[int]struct{}, size int) (int, error) {
	for i := 0; i < size; i++ {
		if _, ok := used[i]; !ok {
			return i, nil
		}
	}
	return 0, fmt.Errorf("all %d slots in use", size)
}

// Summary renders the placement sorted by node id, for logs.
func (p *Problem) Summary(pl Placement) []string {
	ids := make([]string, 0, len(pl))
	for id := range pl {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n := p.nodes[id]
		out = append(out, fmt.Sprintf("%s -> %s", id, SlotName(n.class, pl[id])))
	}
	return out
}
