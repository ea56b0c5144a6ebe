package catalog

import (
	"github.com/vk/bitforge/internal/document"
	"github.com/vk/bitforge/internal/field"
)

// specialSchema is the 23-bit special function array descriptor. The
// inport source selectors are written as bit lists, one bit per lane.
func specialSchema() []field.Field {
	return []field.Field{
		{Name: "data_type", Width: 2, Transform: tokens(map[string]int64{
			"fp16": 0,
			"fp32": 1,
		})},
		{Name: "index_end", Width: 3},
		{Name: "inport0_enable", Width: 1},
		{Name: "inport1_enable", Width: 1},
		{Name: "inport2_enable", Width: 1},
		{Name: "inport0_src_id", Width: 4},
		{Name: "inport1_src_id", Width: 4},
		{Name: "inport2_src_id", Width: 4},
		{Name: "outport_enable", Width: 1},
		{Name: "outport_mode", Width: 1, Transform: tokens(map[string]int64{
			"col": 0,
			"row": 1,
		})},
		{Name: "outport_fp32to16", Width: 1},
	}
}

// SpecialArray configures the special function array appended after the
// buffer managers.
type SpecialArray struct {
	*field.Leaf
}

func newSpecialArray(doc *document.Section) (*SpecialArray, error) {
	leaf := field.NewLeaf("special_array", specialSchema())
	sec, ok := doc.Block("special_array", "")
	if !ok {
		leaf.MarkEmpty()
		return &SpecialArray{Leaf: leaf}, nil
	}
	if err := applyAttrs(leaf, sec); err != nil {
		return nil, err
	}
	return &SpecialArray{Leaf: leaf}, nil
}
