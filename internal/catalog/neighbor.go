package catalog

import (
	"github.com/vk/bitforge/internal/document"
	"github.com/vk/bitforge/internal/field"
)

// neighborSchema is the 21-bit buffer-to-buffer transfer descriptor.
func neighborSchema() []field.Field {
	return []field.Field{
		{Name: "mem_loop", Width: 4},
		{Name: "mode", Width: 1, Transform: tokens(map[string]int64{
			"copy": 0,
			"swap": 1,
		})},
		{Name: "stream_id", Width: 2},
		{Name: "src_slice_sel", Width: 1},
		{Name: "dst_slice_sel", Width: 1},
		{Name: "src_buf_ping_idx", Width: 3},
		{Name: "src_buf_pong_idx", Width: 3},
		{Name: "dst_buf_ping_idx", Width: 3},
		{Name: "dst_buf_pong_idx", Width: 3},
	}
}

// NeighborStream configures the on-chip buffer-to-buffer stream. It has
// no placeable node; the transfer endpoints are named by buffer index.
type NeighborStream struct {
	*field.Leaf
}

func newNeighborStream(doc *document.Section) (*NeighborStream, error) {
	leaf := field.NewLeaf("neighbor", neighborSchema())
	sec, ok := doc.Block("neighbor", "")
	if !ok {
		leaf.MarkEmpty()
		return &NeighborStream{Leaf: leaf}, nil
	}
	if err := applyAttrs(leaf, sec); err != nil {
		return nil, err
	}
	return &NeighborStream{Leaf: leaf}, nil
}
