// Package document defines the format-agnostic nested configuration
// model the compiler consumes. A concrete loader (see internal/hclcfg)
// translates its on-disk format into this model, so the catalog never
// depends on a parser.
package document

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Section is one nested configuration block: typed, optionally labeled,
// holding scalar attributes and child sections. The root of a document
// is an unlabeled section of type "".
type Section struct {
	// Type is the block type, e.g. "loop" or "memory_ag".
	Type string
	// Label is the block's user label, e.g. "lc0". Empty for singletons.
	Label string
	// Attrs holds the block's scalar attributes as typed values.
	Attrs map[string]cty.Value
	// Children holds nested blocks in source order.
	Children []*Section
}

// NewSection returns an empty section.
func NewSection(typ, label string) *Section {
	return &Section{Type: typ, Label: label, Attrs: make(map[string]cty.Value)}
}

// Attr returns the named attribute.
func (s *Section) Attr(name string) (cty.Value, bool) {
	v, ok := s.Attrs[name]
	return v, ok
}

// Block returns the first child of the given type and label. An empty
// label matches any label.
func (s *Section) Block(typ, label string) (*Section, bool) {
	for _, c := range s.Children {
		if c.Type == typ && (label == "" || c.Label == label) {
			return c, true
		}
	}
	return nil, false
}

// BlocksOf returns every child of the given type, in source order.
func (s *Section) BlocksOf(typ string) []*Section {
	var out []*Section
	for _, c := range s.Children {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

// Loader is the interface a format-specific configuration loader
// implements. Load reads every path (files or directories) and merges
// the result into a single root section.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*Section, error)
}
