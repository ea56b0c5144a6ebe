package catalog

import (
	"fmt"

	"github.com/vk/bitforge/internal/document"
	"github.com/vk/bitforge/internal/field"
	"github.com/vk/bitforge/internal/place"
	"github.com/vk/bitforge/internal/session"
)

// Stream engine register files. A read engine carries the padding and
// tailing index windows the write path has no use for, so the two
// memory address-generator schemas differ: 360 bits for reads against
// 208 for writes. The shared buffer address generator is 101 bits. With
// the 43-bit read and 33-bit write control words the totals come to
// 504 and 342 bits, split into 8 and 6 chunks respectively.

func readMemorySchema() []field.Field {
	return []field.Field{
		{Name: "mode", Width: 1, Transform: tokens(map[string]int64{
			"linear": 0,
			"index":  1,
		})},
		{Name: "base_addr", Width: 29},
		{Name: "idx_size", Width: 24},
		{Name: "dim_stride", Width: 60},
		{Name: "padding_reg_value", Width: 8},
		{Name: "idx_padding_low", Width: 36},
		{Name: "idx_padding_up", Width: 36},
		{Name: "idx_tailing_low", Width: 36},
		{Name: "idx_tailing_up", Width: 36},
		{Name: "address_remapping", Width: 64},
		{Name: "idx", Width: 15},
		{Name: "idx_enable", Width: 3},
		{Name: "idx_keep_mode", Width: 3},
		{Name: "idx_keep_last_index", Width: 9},
	}
}

func writeMemorySchema() []field.Field {
	return []field.Field{
		{Name: "mode", Width: 1, Transform: tokens(map[string]int64{
			"linear": 0,
			"index":  1,
		})},
		{Name: "base_addr", Width: 29},
		{Name: "idx_size", Width: 24},
		{Name: "dim_stride", Width: 60},
		{Name: "address_remapping", Width: 64},
		{Name: "idx", Width: 15},
		{Name: "idx_enable", Width: 3},
		{Name: "idx_keep_mode", Width: 3},
		{Name: "idx_keep_last_index", Width: 9},
	}
}

func bufferAGSchema() []field.Field {
	return []field.Field{
		{Name: "spatial_stride", Width: 80},
		{Name: "spatial_size", Width: 5},
		{Name: "idx_enable", Width: 2},
		{Name: "idx_keep_mode", Width: 2},
		{Name: "idx_keep_last_index", Width: 6},
		{Name: "ping_buffer", Width: 3},
		{Name: "pong_buffer", Width: 3},
	}
}

func readCtrlSchema() []field.Field {
	return []field.Field{
		{Name: "src_id", Width: 4},
		{Name: "ping_pong", Width: 1},
		{Name: "pingpong_last_index", Width: 3},
		{Name: "mode", Width: 2},
		{Name: "burst_len", Width: 8, Transform: offset(-1)},
		{Name: "priority", Width: 2},
		{Name: "reserved", Width: 23},
	}
}

func writeCtrlSchema() []field.Field {
	return []field.Field{
		{Name: "src_id", Width: 4},
		{Name: "ping_pong", Width: 1},
		{Name: "pingpong_last_index", Width: 3},
		{Name: "reserved", Width: 25},
	}
}

// StreamEngine configures one DRAM stream engine: the memory-side
// address generator, the on-chip buffer address generator, and the
// control word carrying the data source.
type StreamEngine struct {
	*field.Group
	Memory *field.Leaf
	Buffer *field.Leaf
	Ctrl   *field.Leaf

	node *session.Node
}

func newStreamEngine(sec *document.Section, sess *session.Session, class place.Class) (*StreamEngine, error) {
	node, err := sess.Node(sec.Label, class)
	if err != nil {
		return nil, err
	}

	memSchema := readMemorySchema()
	ctrlSchema := readCtrlSchema()
	if class == place.ClassWriteStream {
		memSchema = writeMemorySchema()
		ctrlSchema = writeCtrlSchema()
	}

	m := &StreamEngine{
		Memory: field.NewLeaf(sec.Type+"."+sec.Label+".memory_ag", memSchema),
		Buffer: field.NewLeaf(sec.Type+"."+sec.Label+".buffer_ag", bufferAGSchema()),
		Ctrl:   field.NewLeaf(sec.Type+"."+sec.Label+".ctrl", ctrlSchema),
		node:   node,
	}
	m.Ctrl.SetOwner(node)
	m.Group = field.NewGroup(sec.Type+"."+sec.Label, m.Memory, m.Buffer, m.Ctrl)

	for _, part := range []struct {
		leaf *field.Leaf
		typ  string
	}{
		{m.Memory, "memory_ag"},
		{m.Buffer, "buffer_ag"},
		{m.Ctrl, "ctrl"},
	} {
		sub, ok := sec.Block(part.typ, "")
		if !ok {
			part.leaf.MarkEmpty()
			continue
		}
		if err := applyAttrs(part.leaf, sub, "src_id"); err != nil {
			return nil, err
		}
		if part.typ == "ctrl" {
			if err := bindSource(part.leaf, "src_id", sess, sub, "source"); err != nil {
				return nil, err
			}
		}
	}

	if !m.Ctrl.Empty() && m.Ctrl.Value("src_id").Kind() != field.KindRef {
		return nil, fmt.Errorf("catalog: %s: ctrl block needs a source", m.Group.Name())
	}
	return m, nil
}

// Node returns the engine's placeable node.
func (m *StreamEngine) Node() *session.Node { return m.node }
