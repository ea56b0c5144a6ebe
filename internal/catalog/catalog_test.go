package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/bitforge/internal/ctxlog"
	"github.com/vk/bitforge/internal/document"
	"github.com/vk/bitforge/internal/field"
	"github.com/vk/bitforge/internal/session"
	"github.com/vk/bitforge/internal/stream"
)

func num(v int64) cty.Value { return cty.NumberIntVal(v) }

func section(parent *document.Section, typ, label string, attrs map[string]cty.Value) *document.Section {
	s := document.NewSection(typ, label)
	for k, v := range attrs {
		s.Attrs[k] = v
	}
	parent.Children = append(parent.Children, s)
	return s
}

// testDoc is a small but complete design: two chained loops, one
// aggregator group, a PE, a read and a write stream, a buffer, and the
// special array.
func testDoc() *document.Section {
	root := document.NewSection("", "")

	section(root, "loop", "outer", map[string]cty.Value{
		"outermost": cty.True, "start": num(0), "end": num(16), "stride": num(1), "last_index": num(15),
	})
	section(root, "loop", "inner", map[string]cty.Value{
		"source": cty.StringVal("outer"), "start": num(0), "end": num(8), "stride": num(1), "last_index": num(7),
	})

	g := section(root, "group", "g0", nil)
	section(g, "row", "", map[string]cty.Value{
		"source": cty.StringVal("outer"), "start": num(0), "end": num(4), "stride": num(1), "last_index": num(3),
	})
	section(g, "col", "", map[string]cty.Value{
		"source": cty.StringVal("row"), "start": num(0), "end": num(4), "stride": num(1), "last_index": num(3),
	})

	section(root, "pe", "mac0", map[string]cty.Value{
		"source": cty.StringVal("inner"), "opcode": cty.StringVal("mac"),
		"constant": num(3), "constant_valid": num(1),
	})

	rd := section(root, "read_stream", "in0", nil)
	section(rd, "memory_ag", "", map[string]cty.Value{
		"mode": cty.StringVal("linear"), "base_addr": num(4096),
		"dim_stride": cty.TupleVal([]cty.Value{num(1), num(16), num(256)}),
	})
	section(rd, "buffer_ag", "", map[string]cty.Value{
		"spatial_size": num(4), "ping_buffer": num(0), "pong_buffer": num(1),
	})
	section(rd, "ctrl", "", map[string]cty.Value{
		"source": cty.StringVal("mac0"), "burst_len": num(8),
	})

	wr := section(root, "write_stream", "out0", nil)
	section(wr, "memory_ag", "", map[string]cty.Value{
		"mode": cty.StringVal("linear"), "base_addr": num(8192),
	})
	section(wr, "ctrl", "", map[string]cty.Value{
		"source": cty.StringVal("mac0"),
	})

	section(root, "buffer", "0", map[string]cty.Value{
		"dst_port": num(1), "life_time": num(2),
		"mask": cty.TupleVal([]cty.Value{num(1), num(1), num(0), num(0), num(0), num(0), num(0), num(0)}),
	})
	section(root, "special_array", "", map[string]cty.Value{
		"data_type": cty.StringVal("fp32"), "outport_enable": num(1), "outport_mode": cty.StringVal("row"),
	})
	return root
}

// compileDoc loads the document and runs the exact placement so the
// deferred references resolve.
func compileDoc(t *testing.T, doc *document.Section) (*Catalog, *session.Session) {
	t.Helper()
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	sess := session.New()
	cat, err := Load(doc, sess)
	require.NoError(t, err)

	prob, err := sess.Problem()
	require.NoError(t, err)
	pl, err := prob.SearchExact(ctx, nil, 0)
	require.NoError(t, err)
	pl, err = prob.Allocate(pl, false)
	require.NoError(t, err)
	require.Empty(t, prob.Violations(pl))
	require.NoError(t, sess.ResolveAll(prob, pl))
	return cat, sess
}

func moduleWidth(t *testing.T, m field.Module) int {
	t.Helper()
	bits, err := m.Bits()
	require.NoError(t, err)
	total := 0
	for _, b := range bits {
		total += b.Width()
	}
	return total
}

func TestCatalogWidths(t *testing.T) {
	cat, _ := compileDoc(t, testDoc())

	cases := []struct {
		name  string
		mod   field.Module
		width int
	}{
		{"loop controller", cat.Loops[0].Leaf, 57},
		{"row aggregator", cat.Groups[0].Row, 51},
		{"col aggregator", cat.Groups[0].Col, 51},
		{"processing element", cat.PEs[0].Leaf, 24},
		{"read stream engine", cat.Reads[0].Group, 504},
		{"write stream engine", cat.Writes[0].Group, 342},
		{"neighbor stream", cat.Neighbor.Leaf, 21},
		{"buffer manager", cat.Buffers[0].Leaf, 12},
		{"special array", cat.Special.Leaf, 23},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.width, moduleWidth(t, tc.mod))
		})
	}

	t.Run("stream bodies divide into their chunk counts", func(t *testing.T) {
		assert.Zero(t, moduleWidth(t, cat.Reads[0].Group)%stream.ChunkCount(stream.KindReadStream))
		assert.Zero(t, moduleWidth(t, cat.Writes[0].Group)%stream.ChunkCount(stream.KindWriteStream))
	})
}

func TestCatalogEntries(t *testing.T) {
	cat, _ := compileDoc(t, testDoc())
	entries, err := cat.Entries()
	require.NoError(t, err)

	t.Run("one entry per physical slot", func(t *testing.T) {
		require.Len(t, entries, numLoops+2*numGroups+numPEs+numReads+numWrites+2+numBuffers+1)
	})

	t.Run("modules land at their placed slot", func(t *testing.T) {
		slot, err := cat.Loops[0].Node().Physical()
		require.NoError(t, err)
		assert.Same(t, entries[slot].Module, cat.Loops[0].Leaf)
	})

	t.Run("unconfigured slots are empty", func(t *testing.T) {
		populated := 0
		for _, e := range entries[:numLoops] {
			if e.Module != nil {
				populated++
			}
		}
		assert.Equal(t, 2, populated)
	})

	t.Run("the second neighbor slot is always empty", func(t *testing.T) {
		idx := numLoops + 2*numGroups + numPEs + numReads + numWrites + 1
		assert.Equal(t, stream.KindNeighbor, entries[idx].Kind)
		assert.Nil(t, entries[idx].Module)
	})

	t.Run("the whole layout assembles cleanly", func(t *testing.T) {
		var mask [stream.MaskWidth]bool
		for i := range mask {
			mask[i] = true
		}
		bs, err := stream.Assemble(entries, mask)
		require.NoError(t, err)
		assert.Zero(t, bs.Len()%stream.LineBits)
	})
}

func TestCatalogReferences(t *testing.T) {
	cat, _ := compileDoc(t, testDoc())

	t.Run("loop chain encodes a legal relative index", func(t *testing.T) {
		v := cat.Loops[1].Value("src_id")
		require.Equal(t, field.KindRef, v.Kind())
		ref, _ := v.AsRef()
		idx, err := ref.RelativeIndex()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, idx, 0)
		assert.LessOrEqual(t, idx, 3)
	})

	t.Run("a column sourcing row binds the sibling aggregator", func(t *testing.T) {
		v := cat.Groups[0].Col.Value("src_id")
		require.Equal(t, field.KindRef, v.Kind())
		ref, _ := v.AsRef()
		idx, err := ref.RelativeIndex()
		require.NoError(t, err)
		assert.Equal(t, 6, idx)
	})

	t.Run("pe sources land in the stream ctrl word", func(t *testing.T) {
		v := cat.Reads[0].Ctrl.Value("src_id")
		require.Equal(t, field.KindRef, v.Kind())
		ref, _ := v.AsRef()
		idx, err := ref.RelativeIndex()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, idx, 6)
		assert.LessOrEqual(t, idx, 11)
	})
}

func TestCatalogTokens(t *testing.T) {
	cat, _ := compileDoc(t, testDoc())

	t.Run("opcode tokens encode through the transform", func(t *testing.T) {
		bits, err := cat.PEs[0].Bits()
		require.NoError(t, err)
		// Schema order: src_id, peer_id, opcode.
		assert.Equal(t, "10", bits[2].BitString())
	})

	t.Run("raw tokens survive for dumping", func(t *testing.T) {
		s, ok := cat.PEs[0].Value("opcode").AsString()
		require.True(t, ok)
		assert.Equal(t, "mac", s)
	})

	t.Run("unknown tokens fail encoding", func(t *testing.T) {
		doc := document.NewSection("", "")
		section(doc, "pe", "bad", map[string]cty.Value{"opcode": cty.StringVal("div")})
		sess := session.New()
		cat, err := Load(doc, sess)
		require.NoError(t, err)
		_, err = cat.PEs[0].Bits()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown token")
	})
}

func TestBufferManager(t *testing.T) {
	t.Run("labels outside the cluster are rejected", func(t *testing.T) {
		doc := document.NewSection("", "")
		section(doc, "buffer", "9", map[string]cty.Value{"dst_port": num(1)})
		_, err := Load(doc, session.New())
		assert.Error(t, err)
	})

	t.Run("duplicate slots are rejected", func(t *testing.T) {
		doc := document.NewSection("", "")
		section(doc, "buffer", "2", map[string]cty.Value{"dst_port": num(1)})
		section(doc, "buffer", "2", map[string]cty.Value{"dst_port": num(1)})
		_, err := Load(doc, session.New())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configured twice")
	})

	t.Run("a disabled buffer is an empty placeholder", func(t *testing.T) {
		doc := document.NewSection("", "")
		section(doc, "buffer", "1", map[string]cty.Value{
			"enable": cty.False, "dst_port": num(1),
		})
		cat, err := Load(doc, session.New())
		require.NoError(t, err)
		assert.True(t, cat.Buffers[1].Empty())
	})

	t.Run("life_time encodes minus one", func(t *testing.T) {
		doc := document.NewSection("", "")
		section(doc, "buffer", "0", map[string]cty.Value{"life_time": num(2)})
		cat, err := Load(doc, session.New())
		require.NoError(t, err)
		bits, err := cat.Buffers[0].Bits()
		require.NoError(t, err)
		assert.Equal(t, "01", bits[1].BitString())
	})
}
