package place

import "fmt"

// The hardware fields that reference another node are too narrow to hold
// an absolute identity, so each legal (class, class) pair maps its small
// set of admissible physical offsets onto a dense relative index space.
// One rule serves three purposes: the admissibility predicate used by the
// exact search, the violation penalty minimized by the annealer, and the
// relative index stored in the encoded field.

// pairRule evaluates one ordered (source class, destination class) pair.
// src and dst are physical slot indices within their respective pools.
type pairRule interface {
	admissible(src, dst int) bool
	penalty(src, dst int) int
	relative(src, dst int) (int, error)
}

// offsetRule admits a fixed set of src-dst offsets, each mapped to a
// dense index. Both endpoints share one pool.
type offsetRule struct {
	index map[int]int // legal offset -> relative index
}

func (r offsetRule) admissible(src, dst int) bool {
	_, ok := r.index[src-dst]
	return ok
}

func (r offsetRule) penalty(src, dst int) int {
	off := src - dst
	if _, ok := r.index[off]; ok {
		return 0
	}
	best := -1
	for legal := range r.index {
		d := off - legal
		if d < 0 {
			d = -d
		}
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 1 {
		best = 1
	}
	return best
}

func (r offsetRule) relative(src, dst int) (int, error) {
	idx, ok := r.index[src-dst]
	if !ok {
		return 0, fmt.Errorf("offset %d not admissible", src-dst)
	}
	return idx, nil
}

// windowRule admits sources whose physical index falls in the window
// [2(dst-1), 2(dst+1)+1] around the destination, mapped densely onto
// base..base+5. Used where a wide unit (group, stream) fans in from a
// band of narrow units (loops, PEs).
type windowRule struct {
	base int
}

func (r windowRule) bounds(dst int) (lo, hi int) {
	return 2 * (dst - 1), 2*(dst+1) + 1
}

func (r windowRule) admissible(src, dst int) bool {
	lo, hi := r.bounds(dst)
	return src >= lo && src <= hi
}

func (r windowRule) penalty(src, dst int) int {
	lo, hi := r.bounds(dst)
	switch {
	case src < lo:
		return lo - src
	case src > hi:
		return src - hi
	default:
		return 0
	}
}

func (r windowRule) relative(src, dst int) (int, error) {
	lo, hi := r.bounds(dst)
	if src < lo || src > hi {
		return 0, fmt.Errorf("source slot %d outside window [%d,%d] of destination %d", src, lo, hi, dst)
	}
	return r.base + src - lo, nil
}

// siblingRule requires both endpoints to share one slot index and
// encodes the pair as a single fixed value.
type siblingRule struct {
	index int
}

func (r siblingRule) admissible(src, dst int) bool { return src == dst }

func (r siblingRule) penalty(src, dst int) int {
	d := src - dst
	if d < 0 {
		d = -d
	}
	return d
}

func (r siblingRule) relative(src, dst int) (int, error) {
	if src != dst {
		return 0, fmt.Errorf("aggregator pair split across slots %d and %d", src, dst)
	}
	return r.index, nil
}

type classPair struct {
	src, dst Class
}

var pairRules = map[classPair]pairRule{
	// A loop controller chains to loops at most two slots away; the same
	// slot is not a legal target.
	{ClassLoop, ClassLoop}: offsetRule{index: map[int]int{-2: 0, -1: 1, 1: 2, 2: 3}},

	// Aggregator groups fan in from the six loops banded around them.
	{ClassLoop, ClassRowAgg}: windowRule{base: 0},
	{ClassLoop, ClassColAgg}: windowRule{base: 0},

	// A row aggregator feeds only its own column sibling.
	{ClassRowAgg, ClassColAgg}: siblingRule{index: 6},

	// A PE accepts its own loop slot and the immediate neighbors.
	{ClassLoop, ClassPE}: offsetRule{index: map[int]int{-1: 0, 0: 1, 1: 2}},

	// PE forwarding skips the self slot, like loop chaining, but lands
	// in the index space above the loop inputs.
	{ClassPE, ClassPE}: offsetRule{index: map[int]int{-2: 3, -1: 4, 1: 5, 2: 6}},

	// Stream engines fan in from the same six-wide band; loop sources
	// occupy 0..5 and PE sources 6..11.
	{ClassLoop, ClassReadStream}:  windowRule{base: 0},
	{ClassLoop, ClassWriteStream}: windowRule{base: 0},
	{ClassPE, ClassReadStream}:    windowRule{base: 6},
	{ClassPE, ClassWriteStream}:   windowRule{base: 6},
}

// ruleFor returns the rule for an ordered class pair, if one exists.
// Pairs without a rule are unconstrained for placement purposes.
func ruleFor(src, dst Class) (pairRule, bool) {
	r, ok := pairRules[classPair{src, dst}]
	return r, ok
}

// Admissible reports whether a placed (source, destination) pair
// satisfies the adjacency constraint for its class pair. Pairs with no
// rule are always admissible.
func Admissible(srcClass Class, srcSlot int, dstClass Class, dstSlot int) bool {
	r, ok := ruleFor(srcClass, dstClass)
	if !ok {
		return true
	}
	return r.admissible(srcSlot, dstSlot)
}

// Penalty returns the non-negative violation cost of a placed pair.
// Zero means the pair is admissible.
func Penalty(srcClass Class, srcSlot int, dstClass Class, dstSlot int) int {
	r, ok := ruleFor(srcClass, dstClass)
	if !ok {
		return 0
	}
	return r.penalty(srcSlot, dstSlot)
}

// RelativeIndex maps a placed (source, destination) pair onto the dense
// index actually stored in a hardware field. Unlike Admissible and
// Penalty, a missing rule here is an error: every class pair that can
// appear in an encoded reference must be covered by the table.
func RelativeIndex(srcClass Class, srcSlot int, dstClass Class, dstSlot int) (int, error) {
	r, ok := ruleFor(srcClass, dstClass)
	if !ok {
		return 0, fmt.Errorf("place: no relative index rule for %s->%s", srcClass, dstClass)
	}
	idx, err := r.relative(srcSlot, dstSlot)
	if err != nil {
		return 0, fmt.Errorf("place: %s(%d)->%s(%d): %w", srcClass, srcSlot, dstClass, dstSlot, err)
	}
	return idx, nil
}
