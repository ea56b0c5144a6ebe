package field

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bitforge/internal/bitvec"
	"github.com/vk/bitforge/internal/place"
	"github.com/vk/bitforge/internal/session"
)

func bitString(t *testing.T, vecs []bitvec.Vec) string {
	t.Helper()
	var b strings.Builder
	for _, v := range vecs {
		b.WriteString(v.BitString())
	}
	return b.String()
}

func TestLeafEncoding(t *testing.T) {
	schema := []Field{
		{Name: "a", Width: 4},
		{Name: "b", Width: 8},
	}

	t.Run("fields encode in schema order at declared widths", func(t *testing.T) {
		l := NewLeaf("m", schema)
		require.NoError(t, l.SetRaw("a", Int(5)))
		require.NoError(t, l.SetRaw("b", Int(7)))
		bits, err := l.Bits()
		require.NoError(t, err)
		assert.Equal(t, "0101"+"00000111", bitString(t, bits))
	})

	t.Run("absent fields encode as zeros", func(t *testing.T) {
		l := NewLeaf("m", schema)
		require.NoError(t, l.SetRaw("b", Int(1)))
		bits, err := l.Bits()
		require.NoError(t, err)
		assert.Equal(t, "0000"+"00000001", bitString(t, bits))
	})

	t.Run("negative values wrap within the width", func(t *testing.T) {
		l := NewLeaf("m", schema)
		require.NoError(t, l.SetRaw("a", Int(-1)))
		bits, err := l.Bits()
		require.NoError(t, err)
		assert.Equal(t, "1111", bits[0].BitString())
	})

	t.Run("unknown field names are rejected", func(t *testing.T) {
		l := NewLeaf("m", schema)
		assert.Error(t, l.SetRaw("c", Int(1)))
		assert.Error(t, l.Set("c", Int(1)))
	})
}

func TestLeafTransforms(t *testing.T) {
	opcode := func(_ *session.Node, v Value) (Value, error) {
		s, ok := v.AsString()
		if !ok {
			return v, nil
		}
		switch s {
		case "add":
			return Int(0), nil
		case "mac":
			return Int(2), nil
		}
		return Absent, fmt.Errorf("unknown opcode %q", s)
	}
	schema := []Field{{Name: "op", Width: 2, Transform: opcode}}

	t.Run("transforms run at encode time, raw value survives", func(t *testing.T) {
		l := NewLeaf("m", schema)
		require.NoError(t, l.SetRaw("op", String("mac")))
		bits, err := l.Bits()
		require.NoError(t, err)
		assert.Equal(t, "10", bitString(t, bits))

		raw, ok := l.Value("op").AsString()
		require.True(t, ok)
		assert.Equal(t, "mac", raw)
	})

	t.Run("transform errors carry the field name", func(t *testing.T) {
		l := NewLeaf("m", schema)
		require.NoError(t, l.SetRaw("op", String("div")))
		_, err := l.Bits()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "m.op")
	})

	t.Run("Set bypasses the transform", func(t *testing.T) {
		l := NewLeaf("m", schema)
		require.NoError(t, l.Set("op", Int(3)))
		bits, err := l.Bits()
		require.NoError(t, err)
		assert.Equal(t, "11", bitString(t, bits))
	})

	t.Run("a token with no transform cannot encode", func(t *testing.T) {
		l := NewLeaf("m", []Field{{Name: "x", Width: 4}})
		require.NoError(t, l.SetRaw("x", String("oops")))
		_, err := l.Bits()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "without a transform")
	})
}

func TestLeafLists(t *testing.T) {
	t.Run("a 0/1 list is a literal bit vector", func(t *testing.T) {
		l := NewLeaf("m", []Field{{Name: "mask", Width: 8}})
		require.NoError(t, l.SetRaw("mask", List([]int64{1, 0, 1, 1, 0, 0, 0, 0})))
		bits, err := l.Bits()
		require.NoError(t, err)
		assert.Equal(t, "10110000", bitString(t, bits))
	})

	t.Run("a general list packs elements evenly", func(t *testing.T) {
		l := NewLeaf("m", []Field{{Name: "stride", Width: 12}})
		require.NoError(t, l.SetRaw("stride", List([]int64{3, 5, 6})))
		bits, err := l.Bits()
		require.NoError(t, err)
		assert.Equal(t, "0011"+"0101"+"0110", bitString(t, bits))
	})

	t.Run("wide packed lists split into 64-bit fragments", func(t *testing.T) {
		l := NewLeaf("m", []Field{{Name: "stride", Width: 80}})
		require.NoError(t, l.SetRaw("stride", List([]int64{1, 2, 3, 4, 5})))
		bits, err := l.Bits()
		require.NoError(t, err)
		require.Len(t, bits, 2)
		assert.Equal(t, 64, bits[0].Width())
		assert.Equal(t, 16, bits[1].Width())
		// 5 elements over 80 bits is 16 bits each; the last fragment holds
		// the final element.
		assert.Equal(t, uint64(5), bits[1].Uint64())
	})

	t.Run("too many elements for the width is an error", func(t *testing.T) {
		l := NewLeaf("m", []Field{{Name: "x", Width: 3}})
		require.NoError(t, l.SetRaw("x", List([]int64{9, 9, 9, 9})))
		_, err := l.Bits()
		assert.Error(t, err)
	})

	t.Run("a width with a remainder is an error", func(t *testing.T) {
		// 80 bits over 3 elements would emit 78 bits and shift every
		// following field.
		l := NewLeaf("m", []Field{{Name: "stride", Width: 80}})
		require.NoError(t, l.SetRaw("stride", List([]int64{9, 64, 1024})))
		_, err := l.Bits()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not divisible")
	})
}

func TestLeafEmptiness(t *testing.T) {
	schema := []Field{{Name: "a", Width: 4}}

	t.Run("fresh and zero-valued leaves are empty", func(t *testing.T) {
		l := NewLeaf("m", schema)
		assert.True(t, l.Empty())
		require.NoError(t, l.SetRaw("a", Int(0)))
		assert.True(t, l.Empty())
	})

	t.Run("any nonzero value is content", func(t *testing.T) {
		l := NewLeaf("m", schema)
		require.NoError(t, l.SetRaw("a", Int(1)))
		assert.False(t, l.Empty())
	})

	t.Run("MarkEmpty wins over content", func(t *testing.T) {
		l := NewLeaf("m", schema)
		require.NoError(t, l.SetRaw("a", Int(1)))
		l.MarkEmpty()
		assert.True(t, l.Empty())
	})
}

func TestLeafRefEncoding(t *testing.T) {
	sess := session.New()
	src, err := sess.Node("src", place.ClassLoop)
	require.NoError(t, err)
	dst, err := sess.Node("dst", place.ClassLoop)
	require.NoError(t, err)

	l := NewLeaf("m", []Field{{Name: "src_id", Width: 8}})
	l.SetOwner(dst)
	require.NoError(t, l.Set("src_id", NodeRef(sess.Ref(src, dst))))

	t.Run("unresolved references fail encoding", func(t *testing.T) {
		_, err := l.Bits()
		assert.Error(t, err)
	})

	t.Run("resolved references encode the relative index", func(t *testing.T) {
		prob, err := sess.Problem()
		require.NoError(t, err)
		pl, err := prob.Allocate(place.Placement{"src": 3, "dst": 4}, false)
		require.NoError(t, err)
		require.NoError(t, sess.ResolveAll(prob, pl))

		bits, err := l.Bits()
		require.NoError(t, err)
		assert.Equal(t, "00000001", bitString(t, bits)) // one below -> 1
	})
}

func TestLeafDump(t *testing.T) {
	t.Run("empty leaves write nothing", func(t *testing.T) {
		var b strings.Builder
		l := NewLeaf("m", []Field{{Name: "a", Width: 4}})
		wrote, err := l.Dump(&b)
		require.NoError(t, err)
		assert.False(t, wrote)
		assert.Empty(t, b.String())
	})

	t.Run("raw value appears beside the encoding", func(t *testing.T) {
		var b strings.Builder
		l := NewLeaf("m", []Field{{Name: "a", Width: 4}})
		require.NoError(t, l.SetRaw("a", Int(5)))
		wrote, err := l.Dump(&b)
		require.NoError(t, err)
		assert.True(t, wrote)
		assert.Contains(t, b.String(), "m:")
		assert.Contains(t, b.String(), "raw=5")
		assert.Contains(t, b.String(), "0101")
	})
}

func TestGroup(t *testing.T) {
	a := NewLeaf("a", []Field{{Name: "x", Width: 4}})
	b := NewLeaf("b", []Field{{Name: "y", Width: 4}})
	g := NewGroup("g", a, b)

	t.Run("empty until any child has content", func(t *testing.T) {
		assert.True(t, g.Empty())
		require.NoError(t, b.SetRaw("y", Int(9)))
		assert.False(t, g.Empty())
	})

	t.Run("concatenates children in order", func(t *testing.T) {
		require.NoError(t, a.SetRaw("x", Int(1)))
		bits, err := g.Bits()
		require.NoError(t, err)
		assert.Equal(t, "0001"+"1001", bitString(t, bits))
	})
}
