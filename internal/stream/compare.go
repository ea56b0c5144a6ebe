package stream

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Diff reports the first mismatch between a generated stream and a
// reference.
type Diff struct {
	// Match is true when both streams are bit-identical.
	Match bool
	// FirstBit is the position of the first differing bit, or the
	// shorter length when one stream is a prefix of the other.
	FirstBit int
	// Section names the entry covering FirstBit in the generated
	// stream.
	Section string
	// GeneratedLen and ReferenceLen are the total bit counts.
	GeneratedLen, ReferenceLen int
}

func (d Diff) String() string {
	if d.Match {
		return "streams match"
	}
	if d.Section != "" {
		return fmt.Sprintf("first difference at bit %d (%s); generated %d bits, reference %d bits",
			d.FirstBit, d.Section, d.GeneratedLen, d.ReferenceLen)
	}
	return fmt.Sprintf("first difference at bit %d; generated %d bits, reference %d bits",
		d.FirstBit, d.GeneratedLen, d.ReferenceLen)
}

// Compare diffs the stream against a reference bit string.
func (bs *Bitstream) Compare(reference string) Diff {
	gen := bs.String()
	d := Diff{GeneratedLen: len(gen), ReferenceLen: len(reference)}

	n := len(gen)
	if len(reference) < n {
		n = len(reference)
	}
	for i := 0; i < n; i++ {
		if gen[i] != reference[i] {
			d.FirstBit = i
			d.Section, _ = bs.SectionAt(i)
			return d
		}
	}
	if len(gen) != len(reference) {
		d.FirstBit = n
		d.Section, _ = bs.SectionAt(n)
		return d
	}
	d.Match = true
	return d
}

// ReadReference reads a reference stream written as lines of 0/1
// characters, ignoring blank lines and surrounding whitespace.
func ReadReference(r io.Reader) (string, error) {
	var b strings.Builder
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		for _, c := range line {
			if c != '0' && c != '1' {
				return "", fmt.Errorf("stream: reference contains %q, expected 0/1", c)
			}
		}
		b.WriteString(line)
	}
	if err := scan.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}
