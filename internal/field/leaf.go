package field

import (
	"fmt"
	"io"
	"math/big"

	"github.com/vk/bitforge/internal/bitvec"
	"github.com/vk/bitforge/internal/session"
)

// chunkBits is the widest single emitted fragment. Lists wider than this
// split into successive chunks.
const chunkBits = 64

// Transform converts a raw configuration value into its encoded form.
// The owner node is the module's own identity, available so a transform
// can mint a node reference scoped to "this module".
type Transform func(owner *session.Node, v Value) (Value, error)

// Field is one schema entry: a name, a declared bit width, and an
// optional transform applied before encoding.
type Field struct {
	Name      string
	Width     int
	Transform Transform
}

// Module is anything that can contribute to the bitstream.
type Module interface {
	// Bits resolves every field to its fixed-width fragments, in schema
	// order.
	Bits() ([]bitvec.Vec, error)
	// Empty reports whether the module holds only absent or zero values
	// and should be emitted as a disabled placeholder.
	Empty() bool
	// Dump writes a per-field diagnostic (raw value beside encoding) and
	// reports whether anything was written. Empty modules write nothing.
	Dump(w io.Writer) (bool, error)
}

type entry struct {
	val   Value
	final bool // transform already applied during population
}

// Leaf is a schema-driven module. Its lifecycle is: construct empty,
// populate once from the input document, then query freely. Population
// stores raw values; transforms run at encode time so a dump can show
// raw and encoded side by side.
type Leaf struct {
	name        string
	schema      []Field
	owner       *session.Node
	vals        map[string]entry
	forcedEmpty bool
}

// NewLeaf returns an unpopulated module over the given schema.
func NewLeaf(name string, schema []Field) *Leaf {
	return &Leaf{
		name:   name,
		schema: schema,
		vals:   make(map[string]entry),
	}
}

// Name returns the module's display name.
func (l *Leaf) Name() string { return l.name }

// Schema returns the module's ordered field list.
func (l *Leaf) Schema() []Field { return l.schema }

// SetOwner attaches the module's own node identity, passed to
// transforms that mint references.
func (l *Leaf) SetOwner(n *session.Node) { l.owner = n }

// Owner returns the module's node identity, if any.
func (l *Leaf) Owner() *session.Node { return l.owner }

func (l *Leaf) fieldNamed(name string) (Field, bool) {
	for _, f := range l.schema {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SetRaw stores an untransformed value for a schema field. The field's
// transform, if any, applies later at encode time.
func (l *Leaf) SetRaw(name string, v Value) error {
	if _, ok := l.fieldNamed(name); !ok {
		return fmt.Errorf("field: %s has no field %q", l.name, name)
	}
	l.vals[name] = entry{val: v}
	return nil
}

// Set stores an already-encoded value; the field's transform is skipped.
// Used when population itself must mint the value (node references need
// the module's identity, which only population knows).
func (l *Leaf) Set(name string, v Value) error {
	if _, ok := l.fieldNamed(name); !ok {
		return fmt.Errorf("field: %s has no field %q", l.name, name)
	}
	l.vals[name] = entry{val: v, final: true}
	return nil
}

// Value returns the stored value for a field, or Absent.
func (l *Leaf) Value(name string) Value {
	return l.vals[name].val
}

// MarkEmpty forces the module to report empty regardless of content.
// Used when the input document has no section for it at all.
func (l *Leaf) MarkEmpty() { l.forcedEmpty = true }

// Empty reports whether every stored value is absent or zero. Stored
// references and tokens count as content even before resolution.
func (l *Leaf) Empty() bool {
	if l.forcedEmpty {
		return true
	}
	for _, e := range l.vals {
		if !e.val.IsZero() {
			return false
		}
	}
	return true
}

// Bits encodes the module: schema order, one or more fragments per
// field.
func (l *Leaf) Bits() ([]bitvec.Vec, error) {
	var out []bitvec.Vec
	for _, f := range l.schema {
		vecs, err := l.encodeField(f)
		if err != nil {
			return nil, fmt.Errorf("field: %s.%s: %w", l.name, f.Name, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (l *Leaf) encodeField(f Field) ([]bitvec.Vec, error) {
	e := l.vals[f.Name]
	v := e.val
	if f.Transform != nil && !e.final {
		tv, err := f.Transform(l.owner, v)
		if err != nil {
			return nil, err
		}
		v = tv
	}
	return encodeValue(v, f.Width)
}

func encodeValue(v Value, width int) ([]bitvec.Vec, error) {
	switch v.Kind() {
	case KindAbsent:
		z, err := bitvec.New(0, width)
		if err != nil {
			return nil, err
		}
		return []bitvec.Vec{z}, nil

	case KindInt:
		i, _ := v.AsInt()
		// Negative values wrap within the declared width, matching the
		// modular arithmetic of the hardware registers.
		b, err := bitvec.FromBig(big.NewInt(i), width)
		if err != nil {
			return nil, err
		}
		return []bitvec.Vec{b}, nil

	case KindString:
		s, _ := v.AsString()
		return nil, fmt.Errorf("token %q reached encoding without a transform", s)

	case KindList:
		list, _ := v.AsList()
		return encodeList(list, width)

	case KindRef:
		r, _ := v.AsRef()
		idx, err := r.RelativeIndex()
		if err != nil {
			return nil, err
		}
		b, err := bitvec.New(uint64(idx), width)
		if err != nil {
			return nil, err
		}
		return []bitvec.Vec{b}, nil

	default:
		return nil, fmt.Errorf("unhandled value kind %d", v.Kind())
	}
}

// encodeList splits a list into fragments of at most chunkBits. A pure
// 0/1 list is a bit vector; anything else packs each element into
// width/len(list) bits.
func encodeList(list []int64, width int) ([]bitvec.Vec, error) {
	if len(list) == 0 {
		z, err := bitvec.New(0, width)
		if err != nil {
			return nil, err
		}
		return []bitvec.Vec{z}, nil
	}

	if isBitList(list) {
		var out []bitvec.Vec
		for i := 0; i < len(list); i += chunkBits {
			end := i + chunkBits
			if end > len(list) {
				end = len(list)
			}
			digits := make([]uint, 0, end-i)
			for _, d := range list[i:end] {
				digits = append(digits, uint(d))
			}
			b, err := bitvec.FromDigits(digits)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
		return out, nil
	}

	perElem := width / len(list)
	if perElem < 1 {
		return nil, fmt.Errorf("declared width %d cannot hold %d elements", width, len(list))
	}
	// A remainder would silently emit fewer bits than the declared width
	// and shift every field after this one.
	if width%len(list) != 0 {
		return nil, fmt.Errorf("declared width %d is not divisible by %d elements", width, len(list))
	}
	elems := make([]uint64, len(list))
	for i, e := range list {
		elems[i] = uint64(e)
	}
	packed, err := bitvec.FromInts(elems, perElem)
	if err != nil {
		return nil, err
	}

	// Emit most-significant chunk first so fragment order matches the
	// serialized bit order.
	var out []bitvec.Vec
	for hi := packed.Width(); hi > 0; {
		lo := hi - chunkBits
		if lo < 0 {
			lo = 0
		}
		c, err := packed.Slice(lo, hi)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		hi = lo
	}
	return out, nil
}

func isBitList(list []int64) bool {
	for _, e := range list {
		if e != 0 && e != 1 {
			return false
		}
	}
	return true
}

// Dump writes one line per field showing the raw value beside its
// encoding. Empty modules produce no output.
func (l *Leaf) Dump(w io.Writer) (bool, error) {
	if l.Empty() {
		return false, nil
	}
	if _, err := fmt.Fprintf(w, "%s:\n", l.name); err != nil {
		return false, err
	}
	for _, f := range l.schema {
		vecs, err := l.encodeField(f)
		if err != nil {
			return true, fmt.Errorf("field: %s.%s: %w", l.name, f.Name, err)
		}
		for i, b := range vecs {
			label := f.Name
			if len(vecs) > 1 {
				label = fmt.Sprintf("%s[%d]", f.Name, i)
			}
			raw := l.vals[f.Name].val.String()
			if _, err := fmt.Fprintf(w, "  %-28s raw=%-12s bits=%s (0x%x)\n",
				label, raw, b.BitString(), b.Big()); err != nil {
				return true, err
			}
		}
	}
	return true, nil
}
