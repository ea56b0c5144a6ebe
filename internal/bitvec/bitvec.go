// Package bitvec implements an immutable, arbitrary-width unsigned bit
// vector. Bit 0 is the least-significant bit. Values are always stored
// modulo 2^width, so every operation wraps instead of overflowing.
package bitvec

import (
	"fmt"
	"math/big"
	"strings"
)

// ByteOrder selects the byte layout used by Bytes and FromBytes.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// Vec is an unsigned integer constrained to a fixed bit width.
// The zero Vec is not valid; construct one with New or a From* helper.
// Vec values are immutable: every operation returns a new Vec.
type Vec struct {
	val   *big.Int
	width int
}

// New returns a Vec holding value truncated to width bits.
// Width must be at least 1.
func New(value uint64, width int) (Vec, error) {
	return FromBig(new(big.Int).SetUint64(value), width)
}

// MustNew is New for statically known-good arguments; it panics on error.
func MustNew(value uint64, width int) Vec {
	v, err := New(value, width)
	if err != nil {
		panic(err)
	}
	return v
}

// FromBig returns a Vec holding value truncated to width bits. Negative
// values are interpreted as two's complement within the width.
func FromBig(value *big.Int, width int) (Vec, error) {
	if width < 1 {
		return Vec{}, fmt.Errorf("bitvec: width must be >= 1, got %d", width)
	}
	v := new(big.Int).Set(value)
	if v.Sign() < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), uint(width)))
	}
	mask := widthMask(width)
	v.And(v, mask)
	return Vec{val: v, width: width}, nil
}

// FromBool returns a 1-bit Vec.
func FromBool(b bool) Vec {
	if b {
		return MustNew(1, 1)
	}
	return MustNew(0, 1)
}

// FromDigits builds a Vec from binary digits, most-significant first,
// so the last element becomes bit 0. Every digit must be 0 or 1.
func FromDigits(digits []uint) (Vec, error) {
	if len(digits) == 0 {
		return MustNew(0, 1), nil
	}
	v := new(big.Int)
	for _, d := range digits {
		if d > 1 {
			return Vec{}, fmt.Errorf("bitvec: digit must be 0 or 1, got %d", d)
		}
		v.Lsh(v, 1)
		v.SetBit(v, 0, d)
	}
	return FromBig(v, len(digits))
}

// FromInts packs elems into adjacent fields of perElem bits each, first
// element in the most-significant position. perElem must be at least 1.
func FromInts(elems []uint64, perElem int) (Vec, error) {
	if perElem < 1 {
		return Vec{}, fmt.Errorf("bitvec: element width must be >= 1, got %d", perElem)
	}
	if len(elems) == 0 {
		return MustNew(0, 1), nil
	}
	v := new(big.Int)
	mask := widthMask(perElem)
	elem := new(big.Int)
	for _, e := range elems {
		elem.SetUint64(e)
		elem.And(elem, mask)
		v.Lsh(v, uint(perElem))
		v.Or(v, elem)
	}
	return Vec{val: v, width: perElem * len(elems)}, nil
}

// FromBytes builds a width-bit Vec from b in the given byte order.
// Excess high bytes are accepted and truncated.
func FromBytes(b []byte, width int, order ByteOrder) (Vec, error) {
	buf := b
	if order == LittleEndian {
		buf = make([]byte, len(b))
		for i, x := range b {
			buf[len(b)-1-i] = x
		}
	}
	return FromBig(new(big.Int).SetBytes(buf), width)
}

// Width reports the fixed width in bits.
func (v Vec) Width() int { return v.width }

// Uint64 returns the low 64 bits of the value.
func (v Vec) Uint64() uint64 {
	low := new(big.Int).And(v.val, widthMask(64))
	return low.Uint64()
}

// Big returns a copy of the value as a big.Int.
func (v Vec) Big() *big.Int { return new(big.Int).Set(v.val) }

// Signed interprets the vector as a two's-complement integer.
func (v Vec) Signed() *big.Int {
	if v.val.Bit(v.width-1) == 0 {
		return v.Big()
	}
	return new(big.Int).Sub(v.val, new(big.Int).Lsh(big.NewInt(1), uint(v.width)))
}

// Bit returns bit i (0 = LSB). Negative indices count from the top,
// like slice indices from the end.
func (v Vec) Bit(i int) (uint, error) {
	if i < 0 {
		i += v.width
	}
	if i < 0 || i >= v.width {
		return 0, fmt.Errorf("bitvec: bit index %d out of range for width %d", i, v.width)
	}
	return v.val.Bit(i), nil
}

// Slice returns bits [lo, hi) as a new Vec of width hi-lo.
// Bounds must satisfy 0 <= lo < hi <= Width.
func (v Vec) Slice(lo, hi int) (Vec, error) {
	if lo < 0 || hi > v.width || lo >= hi {
		return Vec{}, fmt.Errorf("bitvec: slice [%d:%d) out of range for width %d", lo, hi, v.width)
	}
	r := new(big.Int).Rsh(v.val, uint(lo))
	return FromBig(r, hi-lo)
}

// Concat places v in the high bits and low in the low bits.
// The result width is the sum of both widths.
func (v Vec) Concat(low Vec) Vec {
	if low.val == nil {
		panic("bitvec: concat with zero Vec")
	}
	r := new(big.Int).Lsh(v.val, uint(low.width))
	r.Or(r, low.val)
	return Vec{val: r, width: v.width + low.width}
}

// And returns the bitwise AND. Operands align at bit 0 and the result
// width is the wider of the two.
func (v Vec) And(o Vec) Vec { return v.binop(o, (*big.Int).And) }

// Or returns the bitwise OR, aligned at bit 0, width = max of operands.
func (v Vec) Or(o Vec) Vec { return v.binop(o, (*big.Int).Or) }

// Xor returns the bitwise XOR, aligned at bit 0, width = max of operands.
func (v Vec) Xor(o Vec) Vec { return v.binop(o, (*big.Int).Xor) }

func (v Vec) binop(o Vec, op func(z, x, y *big.Int) *big.Int) Vec {
	w := v.width
	if o.width > w {
		w = o.width
	}
	r := op(new(big.Int), v.val, o.val)
	r.And(r, widthMask(w))
	return Vec{val: r, width: w}
}

// Not returns the bitwise complement within the width.
func (v Vec) Not() Vec {
	r := new(big.Int).Xor(v.val, widthMask(v.width))
	return Vec{val: r, width: v.width}
}

// Shl shifts left by n, preserving width and zero-filling.
// A negative n shifts right instead.
func (v Vec) Shl(n int) Vec {
	if n < 0 {
		return v.Shr(-n)
	}
	r := new(big.Int).Lsh(v.val, uint(n))
	r.And(r, widthMask(v.width))
	return Vec{val: r, width: v.width}
}

// Shr shifts right logically by n, preserving width and zero-filling.
// A negative n shifts left instead.
func (v Vec) Shr(n int) Vec {
	if n < 0 {
		return v.Shl(-n)
	}
	r := new(big.Int).Rsh(v.val, uint(n))
	return Vec{val: r, width: v.width}
}

// Sar shifts right arithmetically by n, replicating the sign bit.
// Shifting by width or more yields all-zeros or all-ones by sign.
func (v Vec) Sar(n int) Vec {
	if n < 0 {
		return v.Shl(-n)
	}
	sign := v.val.Bit(v.width - 1)
	if n >= v.width {
		if sign == 1 {
			return Vec{val: widthMask(v.width), width: v.width}
		}
		return Vec{val: new(big.Int), width: v.width}
	}
	r := new(big.Int).Rsh(v.val, uint(n))
	if sign == 1 {
		fill := widthMask(n)
		fill.Lsh(fill, uint(v.width-n))
		r.Or(r, fill)
	}
	return Vec{val: r, width: v.width}
}

// Add returns modular addition within the width.
func (v Vec) Add(o Vec) Vec {
	r := new(big.Int).Add(v.val, o.val)
	r.And(r, widthMask(v.width))
	return Vec{val: r, width: v.width}
}

// AddUint64 adds n modulo 2^width.
func (v Vec) AddUint64(n uint64) Vec {
	r := new(big.Int).Add(v.val, new(big.Int).SetUint64(n))
	r.And(r, widthMask(v.width))
	return Vec{val: r, width: v.width}
}

// Equal reports whether both value and width match.
func (v Vec) Equal(o Vec) bool {
	return v.width == o.width && v.val.Cmp(o.val) == 0
}

// Bytes returns the value as ceil(width/8) bytes in the given order.
func (v Vec) Bytes(order ByteOrder) []byte {
	n := (v.width + 7) / 8
	out := make([]byte, n)
	v.val.FillBytes(out) // big-endian
	if order == LittleEndian {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Digits returns the bits as 0/1 values, most-significant first.
func (v Vec) Digits() []uint {
	out := make([]uint, v.width)
	for i := 0; i < v.width; i++ {
		out[i] = v.val.Bit(v.width - 1 - i)
	}
	return out
}

// BitString renders the value as a fixed-width binary string, MSB first.
func (v Vec) BitString() string {
	var b strings.Builder
	b.Grow(v.width)
	for i := v.width - 1; i >= 0; i-- {
		if v.val.Bit(i) == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// String implements fmt.Stringer.
func (v Vec) String() string {
	return fmt.Sprintf("%s (0b%s, width=%d)", v.val.String(), v.BitString(), v.width)
}

// IsZero reports whether every bit is zero.
func (v Vec) IsZero() bool { return v.val.Sign() == 0 }

func widthMask(width int) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(width))
	return m.Sub(m, big.NewInt(1))
}
