package catalog

import (
	"github.com/vk/bitforge/internal/document"
	"github.com/vk/bitforge/internal/field"
	"github.com/vk/bitforge/internal/place"
	"github.com/vk/bitforge/internal/session"
)

// loopSchema is the 57-bit loop controller register file: the driving
// source, the outermost flag, and the iteration bounds.
func loopSchema() []field.Field {
	return []field.Field{
		{Name: "src_id", Width: 8},
		{Name: "outermost", Width: 1},
		{Name: "start", Width: 16},
		{Name: "end", Width: 16},
		{Name: "stride", Width: 8},
		{Name: "last_index", Width: 8},
	}
}

// LoopController configures one loop controller of the fabric.
type LoopController struct {
	*field.Leaf
	node *session.Node
}

func newLoopController(sec *document.Section, sess *session.Session) (*LoopController, error) {
	node, err := sess.Node(sec.Label, place.ClassLoop)
	if err != nil {
		return nil, err
	}
	leaf := field.NewLeaf("loop."+sec.Label, loopSchema())
	leaf.SetOwner(node)
	if err := applyAttrs(leaf, sec, "src_id"); err != nil {
		return nil, err
	}
	if err := bindSource(leaf, "src_id", sess, sec, "source"); err != nil {
		return nil, err
	}
	return &LoopController{Leaf: leaf, node: node}, nil
}

// Node returns the controller's placeable node.
func (m *LoopController) Node() *session.Node { return m.node }
