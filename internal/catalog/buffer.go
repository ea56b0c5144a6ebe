package catalog

import (
	"fmt"
	"strconv"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/bitforge/internal/document"
	"github.com/vk/bitforge/internal/field"
)

// bufferSchema is the 12-bit buffer manager descriptor. life_time is
// written as an occupancy count and encoded minus one.
func bufferSchema() []field.Field {
	return []field.Field{
		{Name: "dst_port", Width: 1},
		{Name: "life_time", Width: 2, Transform: offset(-1)},
		{Name: "mode", Width: 1},
		{Name: "mask", Width: 8},
	}
}

// BufferManager configures one on-chip buffer. Buffers are addressed
// physically by block label, so they never enter placement.
type BufferManager struct {
	*field.Leaf
}

func newBufferManager(sec *document.Section) (*BufferManager, int, error) {
	slot, err := strconv.Atoi(sec.Label)
	if err != nil || slot < 0 || slot >= numBuffers {
		return nil, 0, fmt.Errorf("catalog: buffer label %q is not a slot in 0..%d", sec.Label, numBuffers-1)
	}
	leaf := field.NewLeaf("buffer."+sec.Label, bufferSchema())
	if err := applyAttrs(leaf, sec); err != nil {
		return nil, 0, err
	}
	if v, ok := sec.Attr("enable"); ok && v.Type() == cty.Bool && v.False() {
		leaf.MarkEmpty()
	}
	return &BufferManager{Leaf: leaf}, slot, nil
}
