package field

import (
	"io"

	"github.com/vk/bitforge/internal/bitvec"
)

// Group is a composite module: an ordered list of children whose
// fragments concatenate in child order.
type Group struct {
	name     string
	children []Module
}

// NewGroup returns a composite over the given children.
func NewGroup(name string, children ...Module) *Group {
	return &Group{name: name, children: children}
}

// Name returns the group's display name.
func (g *Group) Name() string { return g.name }

// Add appends a child module.
func (g *Group) Add(m Module) { g.children = append(g.children, m) }

// Children returns the child modules in order.
func (g *Group) Children() []Module { return g.children }

// Bits concatenates every child's fragments in child order.
func (g *Group) Bits() ([]bitvec.Vec, error) {
	var out []bitvec.Vec
	for _, c := range g.children {
		bits, err := c.Bits()
		if err != nil {
			return nil, err
		}
		out = append(out, bits...)
	}
	return out, nil
}

// Empty reports whether every child is empty.
func (g *Group) Empty() bool {
	for _, c := range g.children {
		if !c.Empty() {
			return false
		}
	}
	return true
}

// Dump forwards to every non-empty child.
func (g *Group) Dump(w io.Writer) (bool, error) {
	wrote := false
	for _, c := range g.children {
		w2, err := c.Dump(w)
		wrote = wrote || w2
		if err != nil {
			return wrote, err
		}
	}
	return wrote, nil
}
