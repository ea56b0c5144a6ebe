package catalog

import (
	"github.com/vk/bitforge/internal/document"
	"github.com/vk/bitforge/internal/field"
	"github.com/vk/bitforge/internal/place"
	"github.com/vk/bitforge/internal/session"
)

// peSchema is the 24-bit processing element register file: the driving
// loop, an optional peer operand, the opcode, and the constant operand.
func peSchema() []field.Field {
	return []field.Field{
		{Name: "src_id", Width: 2},
		{Name: "peer_id", Width: 3},
		{Name: "opcode", Width: 2, Transform: tokens(map[string]int64{
			"add": 0,
			"mul": 1,
			"mac": 2,
		})},
		{Name: "keep_last_index", Width: 4},
		{Name: "constant", Width: 12},
		{Name: "constant_valid", Width: 1},
	}
}

// ProcessingElement configures one element of the loop-PE array.
type ProcessingElement struct {
	*field.Leaf
	node *session.Node
}

func newProcessingElement(sec *document.Section, sess *session.Session) (*ProcessingElement, error) {
	node, err := sess.Node(sec.Label, place.ClassPE)
	if err != nil {
		return nil, err
	}
	leaf := field.NewLeaf("pe."+sec.Label, peSchema())
	leaf.SetOwner(node)
	if err := applyAttrs(leaf, sec, "src_id", "peer_id"); err != nil {
		return nil, err
	}
	if err := bindSource(leaf, "src_id", sess, sec, "source"); err != nil {
		return nil, err
	}
	if err := bindSource(leaf, "peer_id", sess, sec, "peer"); err != nil {
		return nil, err
	}
	return &ProcessingElement{Leaf: leaf, node: node}, nil
}

// Node returns the element's placeable node.
func (m *ProcessingElement) Node() *session.Node { return m.node }
