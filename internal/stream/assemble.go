package stream

import (
	"fmt"
	"strings"

	"github.com/vk/bitforge/internal/bitvec"
	"github.com/vk/bitforge/internal/field"
)

// LineBits is the fixed output line width; the stream pads with zeros
// to this boundary.
const LineBits = 64

// Entry is one module instance at a fixed position in the assembly
// layout.
type Entry struct {
	Kind   Kind
	Module field.Module
}

// section records where one entry landed in the assembled stream, for
// comparison reporting.
type section struct {
	kind  Kind
	index int // entry index within its kind
	start int // first bit (inclusive)
	end   int // last bit (exclusive)
}

// Bitstream is the assembled configuration stream.
type Bitstream struct {
	bits     strings.Builder
	sections []section
}

// Assemble packs the entries, in order, behind the enable mask. Entries
// of a kind whose mask bit is off contribute nothing, not even
// placeholders. Empty entries contribute one zero bit per declared
// chunk; populated entries split into the declared chunk count, each
// chunk behind a 1 enable bit.
func Assemble(entries []Entry, mask [MaskWidth]bool) (*Bitstream, error) {
	bs := &Bitstream{}
	for _, on := range mask {
		bs.writeBit(on)
	}

	kindIndex := make(map[Kind]int)
	for _, e := range entries {
		idx := kindIndex[e.Kind]
		kindIndex[e.Kind]++
		if !mask[MaskBit(e.Kind)] {
			continue
		}
		start := bs.Len()
		if err := bs.writeEntry(e); err != nil {
			return nil, fmt.Errorf("stream: %s[%d]: %w", e.Kind, idx, err)
		}
		bs.sections = append(bs.sections, section{kind: e.Kind, index: idx, start: start, end: bs.Len()})
	}

	for bs.Len()%LineBits != 0 {
		bs.writeBit(false)
	}
	return bs, nil
}

func (bs *Bitstream) writeEntry(e Entry) error {
	chunks := ChunkCount(e.Kind)
	if e.Module == nil || e.Module.Empty() {
		for i := 0; i < chunks; i++ {
			bs.writeBit(false)
		}
		return nil
	}

	body, err := moduleBits(e.Module)
	if err != nil {
		return err
	}
	chunkLen := len(body) / chunks
	if chunkLen*chunks != len(body) {
		// Field tables and chunk counts are fixed together; a remainder
		// is a catalog bug, not a data condition.
		return fmt.Errorf("%d bits not divisible into %d chunks", len(body), chunks)
	}
	for i := 0; i < chunks; i++ {
		bs.writeBit(true)
		bs.bits.WriteString(body[i*chunkLen : (i+1)*chunkLen])
	}
	return nil
}

// EntryChunks returns an entry's framed chunk payloads: nil for an
// empty entry, otherwise the equal-length chunk bit strings.
func EntryChunks(e Entry) ([]string, error) {
	if e.Module == nil || e.Module.Empty() {
		return nil, nil
	}
	body, err := moduleBits(e.Module)
	if err != nil {
		return nil, err
	}
	chunks := ChunkCount(e.Kind)
	chunkLen := len(body) / chunks
	if chunkLen*chunks != len(body) {
		return nil, fmt.Errorf("stream: %s: %d bits not divisible into %d chunks", e.Kind, len(body), chunks)
	}
	out := make([]string, chunks)
	for i := 0; i < chunks; i++ {
		out[i] = body[i*chunkLen : (i+1)*chunkLen]
	}
	return out, nil
}

func moduleBits(m field.Module) (string, error) {
	frags, err := m.Bits()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, f := range frags {
		b.WriteString(f.BitString())
	}
	return b.String(), nil
}

func (bs *Bitstream) writeBit(on bool) {
	if on {
		bs.bits.WriteByte('1')
	} else {
		bs.bits.WriteByte('0')
	}
}

// Len returns the current stream length in bits.
func (bs *Bitstream) Len() int { return bs.bits.Len() }

// String returns the full stream as a 0/1 string.
func (bs *Bitstream) String() string { return bs.bits.String() }

// Lines splits the stream into fixed-width output lines.
func (bs *Bitstream) Lines() []string {
	s := bs.bits.String()
	out := make([]string, 0, len(s)/LineBits)
	for i := 0; i < len(s); i += LineBits {
		out = append(out, s[i:i+LineBits])
	}
	return out
}

// Bytes packs the stream into bytes, one line at a time, big-endian
// within each 64-bit line.
func (bs *Bitstream) Bytes() ([]byte, error) {
	var out []byte
	for _, line := range bs.Lines() {
		digits := make([]uint, len(line))
		for i, c := range line {
			digits[i] = uint(c - '0')
		}
		v, err := bitvec.FromDigits(digits)
		if err != nil {
			return nil, err
		}
		out = append(out, v.Bytes(bitvec.BigEndian)...)
	}
	return out, nil
}

// SectionAt names the entry covering a bit position, for diff reports.
func (bs *Bitstream) SectionAt(bit int) (string, bool) {
	if bit < MaskWidth {
		return "enable_mask", true
	}
	for _, s := range bs.sections {
		if bit >= s.start && bit < s.end {
			return fmt.Sprintf("%s[%d]", s.kind, s.index), true
		}
	}
	if bit < bs.Len() {
		return "padding", true
	}
	return "", false
}
