// Package field implements the declarative field-schema engine: a module
// is an ordered list of (name, width, transform) entries plus the raw
// values populated from the configuration document. Encoding walks the
// schema in order and emits one or more fixed-width bit vectors per
// field.
package field

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/bitforge/internal/session"
)

// Kind discriminates the Value variant.
type Kind int

const (
	// KindAbsent is a field with no configured value; it encodes as a
	// single zero of the declared width.
	KindAbsent Kind = iota
	// KindInt is a plain integer.
	KindInt
	// KindString is an enumeration token awaiting a transform; encoding
	// one directly is an error.
	KindString
	// KindList is a list of integers. A list of only 0/1 encodes as
	// individual bits; any other list packs each element into
	// width/len(list) bits.
	KindList
	// KindRef is a deferred reference to another node, encoded as its
	// topology-relative index.
	KindRef
)

// Value is the tagged variant a schema field can hold. It replaces
// duck-typed "behaves like an integer" dispatch: every variant either
// has a concrete integer rendering or is explicitly pending.
type Value struct {
	kind Kind
	i    int64
	s    string
	list []int64
	ref  session.Ref
}

// Absent is the no-value Value.
var Absent = Value{kind: KindAbsent}

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Bool returns an integer Value of 0 or 1.
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// String returns an enumeration-token Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list Value. The slice is not copied.
func List(v []int64) Value { return Value{kind: KindList, list: v} }

// NodeRef returns a deferred node-reference Value.
func NodeRef(r session.Ref) Value { return Value{kind: KindRef, ref: r} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// AsInt returns the integer payload of a KindInt value.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsString returns the token payload of a KindString value.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsList returns the list payload of a KindList value.
func (v Value) AsList() ([]int64, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// AsRef returns the reference payload of a KindRef value.
func (v Value) AsRef() (session.Ref, bool) {
	if v.kind != KindRef {
		return session.Ref{}, false
	}
	return v.ref, true
}

// IsZero reports whether the value contributes no information: absent,
// integer zero, or an all-zero list. References and tokens are never
// zero.
func (v Value) IsZero() bool {
	switch v.kind {
	case KindAbsent:
		return true
	case KindInt:
		return v.i == 0
	case KindList:
		for _, e := range v.list {
			if e != 0 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindAbsent:
		return "<absent>"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindList:
		return fmt.Sprintf("%v", v.list)
	case KindRef:
		return v.ref.Src().Name()
	default:
		return fmt.Sprintf("<kind %d>", v.kind)
	}
}

// FromCty converts a configuration attribute into a Value. Numbers map
// to integers, bools to 0/1, strings to tokens, and lists or tuples of
// numbers to list values. Null and unknown map to Absent.
func FromCty(v cty.Value) (Value, error) {
	if v.IsNull() || !v.IsKnown() {
		return Absent, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.Number:
		i, acc := v.AsBigFloat().Int64()
		if acc != 0 {
			return Absent, fmt.Errorf("field: number %s is not an integer", v.AsBigFloat().String())
		}
		return Int(i), nil
	case ty == cty.Bool:
		return Bool(v.True()), nil
	case ty == cty.String:
		return String(v.AsString()), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var list []int64
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			fv, err := FromCty(ev)
			if err != nil {
				return Absent, err
			}
			i, ok := fv.AsInt()
			if !ok {
				return Absent, fmt.Errorf("field: list element %s is not an integer", fv)
			}
			list = append(list, i)
		}
		return List(list), nil
	default:
		return Absent, fmt.Errorf("field: unsupported attribute type %s", ty.FriendlyName())
	}
}
