package catalog

import (
	"fmt"

	"github.com/vk/bitforge/internal/document"
	"github.com/vk/bitforge/internal/field"
	"github.com/vk/bitforge/internal/place"
	"github.com/vk/bitforge/internal/session"
)

// aggSchema is the 51-bit register file shared by row and column
// aggregators: the driving source (a loop within the group window, or
// for a column its sibling row) and the iteration bounds.
func aggSchema() []field.Field {
	return []field.Field{
		{Name: "src_id", Width: 3},
		{Name: "start", Width: 16},
		{Name: "end", Width: 16},
		{Name: "stride", Width: 8},
		{Name: "last_index", Width: 8},
	}
}

// AggregatorGroup configures one aggregator group: a row and a column
// aggregator that share the group's physical slot.
type AggregatorGroup struct {
	Row *field.Leaf
	Col *field.Leaf

	node    *session.Node
	rowNode *session.Node
	colNode *session.Node
}

func newAggregatorGroup(sec *document.Section, sess *session.Session) (*AggregatorGroup, error) {
	node, err := sess.Node(sec.Label, place.ClassGroup)
	if err != nil {
		return nil, err
	}
	rowNode, err := sess.Alias(sec.Label+".row", place.ClassRowAgg, node)
	if err != nil {
		return nil, err
	}
	colNode, err := sess.Alias(sec.Label+".col", place.ClassColAgg, node)
	if err != nil {
		return nil, err
	}

	g := &AggregatorGroup{
		Row:     field.NewLeaf("row."+sec.Label, aggSchema()),
		Col:     field.NewLeaf("col."+sec.Label, aggSchema()),
		node:    node,
		rowNode: rowNode,
		colNode: colNode,
	}
	g.Row.SetOwner(rowNode)
	g.Col.SetOwner(colNode)

	if err := g.populateHalf(g.Row, sec, "row", sess); err != nil {
		return nil, err
	}
	if err := g.populateHalf(g.Col, sec, "col", sess); err != nil {
		return nil, err
	}
	return g, nil
}

// populateHalf loads one aggregator sub-block. A column whose source is
// the literal "row" binds to the sibling row aggregator; any other
// source names a node.
func (g *AggregatorGroup) populateHalf(leaf *field.Leaf, sec *document.Section, typ string, sess *session.Session) error {
	sub, ok := sec.Block(typ, "")
	if !ok {
		leaf.MarkEmpty()
		return nil
	}
	if err := applyAttrs(leaf, sub, "src_id"); err != nil {
		return err
	}
	v, ok := sub.Attr("source")
	if !ok {
		return nil
	}
	name, err := stringAttr(sub, "source", v)
	if err != nil {
		return err
	}
	if typ == "col" && name == "row" {
		if err := leaf.Set("src_id", field.NodeRef(sess.Ref(g.rowNode, g.colNode))); err != nil {
			return err
		}
		return nil
	}
	if typ == "row" && name == "row" {
		return fmt.Errorf("catalog: %s: a row aggregator cannot source itself", leaf.Name())
	}
	return bindRef(leaf, "src_id", sess, name)
}

// Node returns the group's placeable node; both aggregators share its
// slot.
func (g *AggregatorGroup) Node() *session.Node { return g.node }
