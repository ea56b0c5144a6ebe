// Package session holds the mutable state of one compilation run: the
// registry of logical nodes, the connection edge set recorded while
// modules populate, and the resolution of every node to its physical
// slot. A Session is constructed fresh per run and threaded explicitly
// through the pipeline; nothing here is process-global, so independent
// runs cannot leak identifiers into each other.
package session

import (
	"fmt"

	"github.com/vk/bitforge/internal/place"
)

// Node is the symbolic placeholder for one hardware-configurable unit.
// Nodes are identity-mapped within a session: requesting the same name
// twice returns the same instance.
type Node struct {
	name     string
	class    place.Class
	parent   *Node // set for alias nodes sharing the parent's slot
	seq      int   // creation-order index, assigned by ResolveAll
	physical int   // slot within the class pool, assigned by ResolveAll
}

// Name returns the node's symbolic name.
func (n *Node) Name() string { return n.name }

// Class returns the node's resource class.
func (n *Node) Class() place.Class { return n.class }

// Seq returns the creation-order index, or -1 before resolution.
func (n *Node) Seq() int { return n.seq }

// Physical returns the node's slot index within its class pool.
// For alias nodes this is the parent's slot.
func (n *Node) Physical() (int, error) {
	if n.physical < 0 {
		return 0, fmt.Errorf("session: node %s is not resolved", n.name)
	}
	return n.physical, nil
}

func (n *Node) String() string {
	if n.physical < 0 {
		return fmt.Sprintf("<%s unresolved>", n.name)
	}
	return fmt.Sprintf("<%s -> %s>", n.name, place.SlotName(n.class, n.physical))
}

// Session is the compilation-scoped symbol table and connection graph.
type Session struct {
	nodes    map[string]*Node
	order    []*Node
	edges    []place.Edge
	edgeSet  map[place.Edge]struct{}
	resolved bool
}

// New returns an empty session.
func New() *Session {
	return &Session{
		nodes:   make(map[string]*Node),
		edgeSet: make(map[place.Edge]struct{}),
	}
}

// Node returns the node registered under name, creating it on first
// use. A node first seen without a class adopts the class of a later
// request; conflicting non-none classes are a population bug.
func (s *Session) Node(name string, class place.Class) (*Node, error) {
	if n, ok := s.nodes[name]; ok {
		if n.class == place.ClassNone && class != place.ClassNone {
			n.class = class
		} else if class != place.ClassNone && n.class != class {
			return nil, fmt.Errorf("session: node %s requested as %s but registered as %s", name, class, n.class)
		}
		return n, nil
	}
	n := &Node{name: name, class: class, seq: -1, physical: -1}
	s.nodes[name] = n
	s.order = append(s.order, n)
	return n, nil
}

// Alias registers a node that never receives its own slot and always
// shares parent's. Row and column aggregator children of a group are
// the canonical case.
func (s *Session) Alias(name string, class place.Class, parent *Node) (*Node, error) {
	if n, ok := s.nodes[name]; ok {
		if n.parent != parent {
			return nil, fmt.Errorf("session: node %s already registered with a different parent", name)
		}
		return n, nil
	}
	n := &Node{name: name, class: class, parent: parent, seq: -1, physical: -1}
	s.nodes[name] = n
	s.order = append(s.order, n)
	return n, nil
}

// Lookup returns a registered node without creating it.
func (s *Session) Lookup(name string) (*Node, bool) {
	n, ok := s.nodes[name]
	return n, ok
}

// Connect records the directed edge src -> dst. Duplicate edges collapse
// to one.
func (s *Session) Connect(src, dst *Node) {
	e := place.Edge{Src: src.name, Dst: dst.name}
	if _, ok := s.edgeSet[e]; ok {
		return
	}
	s.edgeSet[e] = struct{}{}
	s.edges = append(s.edges, e)
}

// Edges returns the recorded edges in insertion order.
func (s *Session) Edges() []place.Edge {
	out := make([]place.Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// Problem builds the placement problem from the current node registry
// and edge set. The problem is a snapshot: later node registration does
// not alter an already-built problem.
func (s *Session) Problem() (*place.Problem, error) {
	p := place.NewProblem()
	for _, n := range s.order {
		if n.parent == nil {
			p.AddNode(n.name, n.class)
		}
	}
	for _, n := range s.order {
		if n.parent != nil {
			if err := p.AddAlias(n.name, n.class, n.parent.name); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range s.edges {
		if err := p.AddEdge(e.Src, e.Dst); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ResolveAll assigns every node its creation-order index and its
// physical slot from the placement. The placement must cover every
// slot-owning node; run an allocation fill first. Resolving twice is an
// error: a session describes exactly one run.
func (s *Session) ResolveAll(p *place.Problem, pl place.Placement) error {
	if s.resolved {
		return fmt.Errorf("session: already resolved")
	}
	for i, n := range s.order {
		n.seq = i
	}
	for _, n := range s.order {
		slot, ok := p.SlotOf(pl, n.name)
		if !ok {
			return fmt.Errorf("session: node %s missing from placement", n.name)
		}
		n.physical = slot
	}
	s.resolved = true
	return nil
}

// Resolved reports whether ResolveAll has completed.
func (s *Session) Resolved() bool { return s.resolved }

// Ref is a deferred reference to another node as seen from a specific
// referencing node. Constructing one eagerly records the edge; the
// relative index is computed only once both endpoints are placed.
type Ref struct {
	src, dst *Node
}

// Ref records the edge src -> dst and returns the deferred reference
// held by dst's configuration field.
func (s *Session) Ref(src, dst *Node) Ref {
	s.Connect(src, dst)
	return Ref{src: src, dst: dst}
}

// Src returns the referenced (source) node.
func (r Ref) Src() *Node { return r.src }

// Dst returns the referencing (destination) node.
func (r Ref) Dst() *Node { return r.dst }

// RelativeIndex converts the reference into the topology-relative index
// stored in the hardware field. Both endpoints must be resolved; an
// offset outside the class pair's legal window is an error, never a
// silent zero.
func (r Ref) RelativeIndex() (int, error) {
	srcSlot, err := r.src.Physical()
	if err != nil {
		return 0, err
	}
	dstSlot, err := r.dst.Physical()
	if err != nil {
		return 0, err
	}
	return place.RelativeIndex(r.src.class, srcSlot, r.dst.class, dstSlot)
}
