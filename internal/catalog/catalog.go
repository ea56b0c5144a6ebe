// Package catalog defines the concrete hardware-block configuration
// modules and the fixed order in which they assemble into the stream:
// loop controllers, aggregator groups, the loop-PE array, stream
// engines, the neighbor stream, buffer managers, and the special array.
// Every module is a schema-driven field.Leaf; this package only supplies
// the field tables, the document wiring, and the node references.
package catalog

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/bitforge/internal/document"
	"github.com/vk/bitforge/internal/field"
	"github.com/vk/bitforge/internal/place"
	"github.com/vk/bitforge/internal/session"
	"github.com/vk/bitforge/internal/stream"
)

// Entry counts of the target fabric, fixed by the hardware.
const (
	numLoops   = 8
	numGroups  = 4
	numPEs     = 8
	numReads   = 3
	numWrites  = 1
	numBuffers = 6
)

// Catalog is the full set of module instances for one compilation run.
// Placeable modules are held in document order under their logical
// names; Entries arranges them by physical slot once the session is
// resolved.
type Catalog struct {
	Loops    []*LoopController
	Groups   []*AggregatorGroup
	PEs      []*ProcessingElement
	Reads    []*StreamEngine
	Writes   []*StreamEngine
	Neighbor *NeighborStream
	Buffers  [numBuffers]*BufferManager
	Special  *SpecialArray
}

// Load builds every module instance declared in the document,
// registering placeable nodes and connection edges with the session as
// reference fields are bound.
func Load(doc *document.Section, sess *session.Session) (*Catalog, error) {
	c := &Catalog{}

	for _, sec := range doc.BlocksOf("loop") {
		m, err := newLoopController(sec, sess)
		if err != nil {
			return nil, err
		}
		c.Loops = append(c.Loops, m)
	}
	if len(c.Loops) > numLoops {
		return nil, fmt.Errorf("catalog: %d loop blocks, fabric has %d controllers", len(c.Loops), numLoops)
	}

	for _, sec := range doc.BlocksOf("group") {
		m, err := newAggregatorGroup(sec, sess)
		if err != nil {
			return nil, err
		}
		c.Groups = append(c.Groups, m)
	}
	if len(c.Groups) > numGroups {
		return nil, fmt.Errorf("catalog: %d group blocks, fabric has %d groups", len(c.Groups), numGroups)
	}

	for _, sec := range doc.BlocksOf("pe") {
		m, err := newProcessingElement(sec, sess)
		if err != nil {
			return nil, err
		}
		c.PEs = append(c.PEs, m)
	}
	if len(c.PEs) > numPEs {
		return nil, fmt.Errorf("catalog: %d pe blocks, fabric has %d elements", len(c.PEs), numPEs)
	}

	for _, sec := range doc.BlocksOf("read_stream") {
		m, err := newStreamEngine(sec, sess, place.ClassReadStream)
		if err != nil {
			return nil, err
		}
		c.Reads = append(c.Reads, m)
	}
	if len(c.Reads) > numReads {
		return nil, fmt.Errorf("catalog: %d read_stream blocks, fabric has %d engines", len(c.Reads), numReads)
	}

	for _, sec := range doc.BlocksOf("write_stream") {
		m, err := newStreamEngine(sec, sess, place.ClassWriteStream)
		if err != nil {
			return nil, err
		}
		c.Writes = append(c.Writes, m)
	}
	if len(c.Writes) > numWrites {
		return nil, fmt.Errorf("catalog: %d write_stream blocks, fabric has %d engines", len(c.Writes), numWrites)
	}

	var err error
	if c.Neighbor, err = newNeighborStream(doc); err != nil {
		return nil, err
	}
	if err := c.loadBuffers(doc); err != nil {
		return nil, err
	}
	if c.Special, err = newSpecialArray(doc); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) loadBuffers(doc *document.Section) error {
	for _, sec := range doc.BlocksOf("buffer") {
		m, slot, err := newBufferManager(sec)
		if err != nil {
			return err
		}
		if c.Buffers[slot] != nil {
			return fmt.Errorf("catalog: buffer %d configured twice", slot)
		}
		c.Buffers[slot] = m
	}
	return nil
}

// Entries returns the module instances arranged in the fixed assembly
// order, one entry per physical slot. Every placeable node must be
// resolved first. The second neighbor slot is always empty in this
// fabric revision.
func (c *Catalog) Entries() ([]stream.Entry, error) {
	loops := make([]field.Module, numLoops)
	for _, m := range c.Loops {
		if err := fillSlot(loops, m.node, m.Leaf); err != nil {
			return nil, err
		}
	}
	rows := make([]field.Module, numGroups)
	cols := make([]field.Module, numGroups)
	for _, g := range c.Groups {
		if err := fillSlot(rows, g.node, g.Row); err != nil {
			return nil, err
		}
		if err := fillSlot(cols, g.node, g.Col); err != nil {
			return nil, err
		}
	}
	pes := make([]field.Module, numPEs)
	for _, m := range c.PEs {
		if err := fillSlot(pes, m.node, m.Leaf); err != nil {
			return nil, err
		}
	}
	reads := make([]field.Module, numReads)
	for _, m := range c.Reads {
		if err := fillSlot(reads, m.node, m.Group); err != nil {
			return nil, err
		}
	}
	writes := make([]field.Module, numWrites)
	for _, m := range c.Writes {
		if err := fillSlot(writes, m.node, m.Group); err != nil {
			return nil, err
		}
	}

	var out []stream.Entry
	for _, m := range loops {
		out = append(out, stream.Entry{Kind: stream.KindLoop, Module: m})
	}
	for _, m := range rows {
		out = append(out, stream.Entry{Kind: stream.KindRowAgg, Module: m})
	}
	for _, m := range cols {
		out = append(out, stream.Entry{Kind: stream.KindColAgg, Module: m})
	}
	for _, m := range pes {
		out = append(out, stream.Entry{Kind: stream.KindPE, Module: m})
	}
	for _, m := range reads {
		out = append(out, stream.Entry{Kind: stream.KindReadStream, Module: m})
	}
	for _, m := range writes {
		out = append(out, stream.Entry{Kind: stream.KindWriteStream, Module: m})
	}
	var nb field.Module
	if c.Neighbor != nil {
		nb = c.Neighbor.Leaf
	}
	out = append(out, stream.Entry{Kind: stream.KindNeighbor, Module: nb})
	out = append(out, stream.Entry{Kind: stream.KindNeighbor, Module: nil})
	for _, m := range c.Buffers {
		if m == nil {
			out = append(out, stream.Entry{Kind: stream.KindBuffer, Module: nil})
		} else {
			out = append(out, stream.Entry{Kind: stream.KindBuffer, Module: m.Leaf})
		}
	}
	var sp field.Module
	if c.Special != nil {
		sp = c.Special.Leaf
	}
	out = append(out, stream.Entry{Kind: stream.KindSpecial, Module: sp})
	return out, nil
}

func fillSlot(slots []field.Module, node *session.Node, m field.Module) error {
	slot, err := node.Physical()
	if err != nil {
		return err
	}
	if slot < 0 || slot >= len(slots) {
		return fmt.Errorf("catalog: %s placed at slot %d, fabric has %d", node.Name(), slot, len(slots))
	}
	if slots[slot] != nil {
		return fmt.Errorf("catalog: %s placed at occupied slot %d", node.Name(), slot)
	}
	slots[slot] = m
	return nil
}

// Modules returns every configured module in declaration order, for
// diagnostics. Unlike Entries this does not require a resolved session.
func (c *Catalog) Modules() []field.Module {
	var out []field.Module
	for _, m := range c.Loops {
		out = append(out, m.Leaf)
	}
	for _, g := range c.Groups {
		out = append(out, g.Row, g.Col)
	}
	for _, m := range c.PEs {
		out = append(out, m.Leaf)
	}
	for _, m := range c.Reads {
		out = append(out, m.Group)
	}
	for _, m := range c.Writes {
		out = append(out, m.Group)
	}
	if c.Neighbor != nil {
		out = append(out, c.Neighbor.Leaf)
	}
	for _, m := range c.Buffers {
		if m != nil {
			out = append(out, m.Leaf)
		}
	}
	if c.Special != nil {
		out = append(out, c.Special.Leaf)
	}
	return out
}

// nodeFor resolves a symbolic source name to its node. Names already
// registered win; otherwise the resource class is inferred from the
// naming convention (lc*, group*, pe*, rd*, wr*), and unrecognized
// names register as classless placeholders that adopt a class when the
// declaring block registers them.
func nodeFor(sess *session.Session, name string) (*session.Node, error) {
	if n, ok := sess.Lookup(name); ok {
		return n, nil
	}
	class := place.ClassNone
	switch {
	case strings.HasPrefix(name, "lc"):
		class = place.ClassLoop
	case strings.HasPrefix(name, "group"):
		class = place.ClassGroup
	case strings.HasPrefix(name, "pe"):
		class = place.ClassPE
	case strings.HasPrefix(name, "rd"):
		class = place.ClassReadStream
	case strings.HasPrefix(name, "wr"):
		class = place.ClassWriteStream
	}
	return sess.Node(name, class)
}

// bindRef mints a deferred reference from the named source node to the
// owning module's node and stores it as the field value.
func bindRef(leaf *field.Leaf, fieldName string, sess *session.Session, srcName string) error {
	owner := leaf.Owner()
	if owner == nil {
		return fmt.Errorf("catalog: %s has no node identity for reference field %s", leaf.Name(), fieldName)
	}
	src, err := nodeFor(sess, srcName)
	if err != nil {
		return err
	}
	return leaf.Set(fieldName, field.NodeRef(sess.Ref(src, owner)))
}

// bindSource reads the section's named attribute as a node name and
// binds it to the leaf's reference field. A missing attribute leaves
// the field absent.
func bindSource(leaf *field.Leaf, fieldName string, sess *session.Session, sec *document.Section, attrName string) error {
	v, ok := sec.Attr(attrName)
	if !ok {
		return nil
	}
	name, err := stringAttr(sec, attrName, v)
	if err != nil {
		return err
	}
	return bindRef(leaf, fieldName, sess, name)
}

func stringAttr(sec *document.Section, name string, v cty.Value) (string, error) {
	if v.IsNull() || v.Type() != cty.String {
		return "", fmt.Errorf("catalog: %s %q: attribute %s must be a node name", sec.Type, sec.Label, name)
	}
	return v.AsString(), nil
}

// applyAttrs stores every schema-named attribute present in the section
// as a raw value. Names listed in skip are bound elsewhere.
func applyAttrs(leaf *field.Leaf, sec *document.Section, skip ...string) error {
	skipSet := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipSet[s] = struct{}{}
	}
	for _, f := range leaf.Schema() {
		if _, ok := skipSet[f.Name]; ok {
			continue
		}
		attr, ok := sec.Attr(f.Name)
		if !ok {
			continue
		}
		v, err := field.FromCty(attr)
		if err != nil {
			return fmt.Errorf("catalog: %s.%s: %w", leaf.Name(), f.Name, err)
		}
		if err := leaf.SetRaw(f.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// tokens returns a transform mapping enumeration tokens to their
// encodings. Integers and absent values pass through untouched so
// pre-encoded configurations stay valid.
func tokens(m map[string]int64) field.Transform {
	return func(_ *session.Node, v field.Value) (field.Value, error) {
		s, ok := v.AsString()
		if !ok {
			return v, nil
		}
		enc, ok := m[s]
		if !ok {
			return field.Absent, fmt.Errorf("unknown token %q", s)
		}
		return field.Int(enc), nil
	}
}

// offset returns a transform adding delta to the raw integer. Absent
// values are treated as zero before the offset, matching the hardware's
// minus-one register conventions.
func offset(delta int64) field.Transform {
	return func(_ *session.Node, v field.Value) (field.Value, error) {
		if v.Kind() == field.KindAbsent {
			return field.Int(delta), nil
		}
		i, ok := v.AsInt()
		if !ok {
			return field.Absent, fmt.Errorf("offset transform needs an integer, got %s", v)
		}
		return field.Int(i + delta), nil
	}
}
