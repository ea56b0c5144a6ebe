// Package place assigns logical dataflow nodes to the fixed pools of
// physical hardware slots. It owns the resource-class definitions, the
// adjacency rule table shared by constraint checking and relative-index
// encoding, and three assignment strategies: plain allocation, exact
// backtracking search, and simulated annealing.
package place

import "fmt"

// Class enumerates the hardware resource families. Every placeable node
// belongs to exactly one class and competes for that class's slot pool.
type Class int

const (
	// ClassNone marks nodes with no hardware family. They receive
	// sequential placeholder slots from an unbounded pool.
	ClassNone Class = iota
	ClassLoop
	ClassGroup
	// ClassRowAgg and ClassColAgg never own a slot: a group's row and
	// column aggregator children always alias their parent group's slot.
	ClassRowAgg
	ClassColAgg
	ClassPE
	ClassReadStream
	ClassWriteStream
)

var classNames = map[Class]string{
	ClassNone:        "none",
	ClassLoop:        "loop",
	ClassGroup:       "group",
	ClassRowAgg:      "row_agg",
	ClassColAgg:      "col_agg",
	ClassPE:          "pe",
	ClassReadStream:  "rd_stream",
	ClassWriteStream: "wr_stream",
}

func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// poolSizes gives the number of physical slots per pool-owning class.
var poolSizes = map[Class]int{
	ClassLoop:        8,
	ClassGroup:       4,
	ClassPE:          8,
	ClassReadStream:  3,
	ClassWriteStream: 1,
}

// PoolSize returns the number of physical slots for a class, or 0 for
// classes that own no pool (ClassNone and the aggregator alias classes).
func PoolSize(c Class) int { return poolSizes[c] }

// poolClass maps a class to the class whose pool it draws slots from.
// Aggregator children draw from the group pool through their parent.
func poolClass(c Class) Class {
	switch c {
	case ClassRowAgg, ClassColAgg:
		return ClassGroup
	default:
		return c
	}
}

// SlotName returns the name of physical slot i within a class pool.
func SlotName(c Class, i int) string {
	switch poolClass(c) {
	case ClassLoop:
		return fmt.Sprintf("lc%d", i)
	case ClassGroup:
		return fmt.Sprintf("group%d", i)
	case ClassPE:
		return fmt.Sprintf("pe%d", i)
	case ClassReadStream:
		return fmt.Sprintf("rd%d", i)
	case ClassWriteStream:
		return fmt.Sprintf("wr%d", i)
	default:
		return fmt.Sprintf("slot%d", i)
	}
}
