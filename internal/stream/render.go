package stream

import (
	"fmt"
	"io"
)

// Render writes the human-readable grouped form: one header per kind,
// then one line per framed chunk ("1 <bits>") and a bare "0" line per
// empty chunk slot, so two runs diff line-for-line regardless of which
// entries carry data.
func Render(w io.Writer, entries []Entry) error {
	var lastKind Kind = -1
	for _, e := range entries {
		if e.Kind != lastKind {
			if lastKind >= 0 {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "%s:\n", e.Kind); err != nil {
				return err
			}
			lastKind = e.Kind
		}

		chunks, err := EntryChunks(e)
		if err != nil {
			return err
		}
		if chunks == nil {
			for i := 0; i < ChunkCount(e.Kind); i++ {
				if _, err := fmt.Fprintln(w, "0"); err != nil {
					return err
				}
			}
			continue
		}
		for _, c := range chunks {
			if _, err := fmt.Fprintf(w, "1 %s\n", c); err != nil {
				return err
			}
		}
	}
	if lastKind >= 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
