// Package compiler runs the full pipeline: load the catalog from a
// configuration document, place every logical node onto a physical
// slot, resolve the deferred references, and assemble the bitstream.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/bitforge/internal/catalog"
	"github.com/vk/bitforge/internal/ctxlog"
	"github.com/vk/bitforge/internal/document"
	"github.com/vk/bitforge/internal/place"
	"github.com/vk/bitforge/internal/session"
	"github.com/vk/bitforge/internal/stream"
)

// Strategy selects the placement search.
type Strategy string

const (
	// StrategyAlloc assigns slots first-come first-served with no
	// constraint checking. Useful for hand-placed configurations.
	StrategyAlloc Strategy = "alloc"
	// StrategyExact runs the backtracking search and falls back to
	// annealing when no admissible placement exists or the budget runs
	// out.
	StrategyExact Strategy = "exact"
	// StrategyAnneal runs the simulated annealing search directly.
	StrategyAnneal Strategy = "anneal"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyAlloc, StrategyExact, StrategyAnneal:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("compiler: unknown placement strategy %q", s)
}

// DefaultMask is the enable mask used when the caller gives none: the
// three emitted region groups on, the general-array bit and the
// reserved high nibble clear.
func DefaultMask() [stream.MaskWidth]bool {
	var m [stream.MaskWidth]bool
	m[0], m[1], m[2] = true, true, true
	return m
}

// Options tunes one compilation run.
type Options struct {
	Strategy   Strategy
	Iterations int           // annealing proposal budget per restart
	Restarts   int           // annealing restarts
	Seed       int64         // annealing RNG seed
	Timeout    time.Duration // exact search wall-clock budget, 0 = none
	Mask       [stream.MaskWidth]bool
}

// Result is one finished compilation.
type Result struct {
	Catalog    *catalog.Catalog
	Entries    []stream.Entry
	Bitstream  *stream.Bitstream
	Placement  place.Placement
	Penalty    int
	Violations []place.Violation
	Summary    []string
}

// Run compiles one configuration document into a bitstream. Placement
// constraint violations are reported and logged, not fatal: the caller
// gets a stream plus the violation list and decides what to do with it.
func Run(ctx context.Context, doc *document.Section, opts Options) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	sess := session.New()
	cat, err := catalog.Load(doc, sess)
	if err != nil {
		return nil, err
	}

	prob, err := sess.Problem()
	if err != nil {
		return nil, err
	}
	if err := prob.Validate(); err != nil {
		return nil, err
	}

	pl, err := search(ctx, prob, opts)
	if err != nil {
		return nil, err
	}
	// Fill in everything the search did not touch: unconnected nodes and
	// classless placeholders.
	pl, err = prob.Allocate(pl, false)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Catalog:    cat,
		Placement:  pl,
		Penalty:    prob.Cost(pl),
		Violations: prob.Violations(pl),
		Summary:    prob.Summary(pl),
	}
	for _, v := range res.Violations {
		logger.Warn("Placement violates an adjacency constraint.",
			"src", v.Edge.Src, "dst", v.Edge.Dst, "penalty", v.Penalty)
	}

	if err := sess.ResolveAll(prob, pl); err != nil {
		return nil, err
	}

	res.Entries, err = cat.Entries()
	if err != nil {
		return nil, err
	}
	res.Bitstream, err = stream.Assemble(res.Entries, opts.Mask)
	if err != nil {
		return nil, err
	}

	logger.Info("Compilation finished.",
		"bits", res.Bitstream.Len(), "lines", res.Bitstream.Len()/stream.LineBits,
		"penalty", res.Penalty, "violations", len(res.Violations))
	return res, nil
}

func search(ctx context.Context, prob *place.Problem, opts Options) (place.Placement, error) {
	logger := ctxlog.FromContext(ctx)

	switch opts.Strategy {
	case StrategyAlloc, "":
		return place.Placement{}, nil

	case StrategyExact:
		pl, err := prob.SearchExact(ctx, nil, opts.Timeout)
		if err == nil {
			return pl, nil
		}
		if !errors.Is(err, place.ErrNoPlacement) && !errors.Is(err, place.ErrTimeout) {
			return nil, err
		}
		logger.Warn("Exact placement search failed, falling back to annealing.", "reason", err)
		return anneal(ctx, prob, opts)

	case StrategyAnneal:
		return anneal(ctx, prob, opts)
	}
	return nil, fmt.Errorf("compiler: unknown placement strategy %q", opts.Strategy)
}

func anneal(ctx context.Context, prob *place.Problem, opts Options) (place.Placement, error) {
	pl, _, err := prob.SearchAnneal(ctx, nil, place.AnnealOptions{
		Iterations: opts.Iterations,
		Restarts:   opts.Restarts,
		Seed:       opts.Seed,
	})
	return pl, err
}
