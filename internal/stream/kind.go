// Package stream assembles encoded module fragments into the final
// configuration bitstream: a leading enable mask, per-entry framed
// chunks, and zero padding to a 64-bit line boundary. It also renders
// the human-readable grouped form and diffs a stream against a
// reference.
package stream

// Kind identifies one group of same-shaped entries in the fixed
// assembly layout.
type Kind int

const (
	KindLoop Kind = iota
	KindRowAgg
	KindColAgg
	KindPE
	KindReadStream
	KindWriteStream
	KindNeighbor
	KindBuffer
	KindSpecial
	numKinds
)

var kindNames = [numKinds]string{
	"loop_ctrl",
	"row_agg",
	"col_agg",
	"pe",
	"rd_stream",
	"wr_stream",
	"neighbor",
	"buffer_cluster",
	"special_array",
}

func (k Kind) String() string {
	if k >= 0 && k < numKinds {
		return kindNames[k]
	}
	return "unknown"
}

// chunkCounts declares how many enable-framed chunks each entry of a
// kind occupies. An empty entry contributes exactly one zero bit per
// declared chunk.
var chunkCounts = [numKinds]int{
	KindLoop:        1,
	KindRowAgg:      1,
	KindColAgg:      1,
	KindPE:          1,
	KindReadStream:  8,
	KindWriteStream: 6,
	KindNeighbor:    1,
	KindBuffer:      1,
	KindSpecial:     1,
}

// ChunkCount returns the declared chunk count for a kind.
func ChunkCount(k Kind) int { return chunkCounts[k] }

// MaskWidth is the size of the leading enable mask. The high bits are
// reserved.
const MaskWidth = 8

// maskBits maps each kind to the enable-mask bit gating its whole
// group. Bit 3 is reserved for the general array, which has no entries
// in this layout.
var maskBits = [numKinds]int{
	KindLoop:        0,
	KindRowAgg:      0,
	KindColAgg:      0,
	KindPE:          0,
	KindReadStream:  1,
	KindWriteStream: 1,
	KindNeighbor:    1,
	KindBuffer:      1,
	KindSpecial:     2,
}

// MaskBit returns the enable-mask bit index for a kind.
func MaskBit(k Kind) int { return maskBits[k] }
