package place

import (
	"context"
	"math"
	"math/rand"

	"github.com/vk/bitforge/internal/ctxlog"
)

// AnnealOptions tunes the simulated annealing search. Zero values fall
// back to the defaults below.
type AnnealOptions struct {
	Iterations int     // proposal budget per restart
	Restarts   int     // independent chains; the best result wins
	Seed       int64   // RNG seed; restart r uses Seed+r
	Temp       float64 // initial temperature
	Cooling    float64 // geometric decay factor per iteration
}

const (
	defaultIterations = 5000
	defaultRestarts   = 1
	defaultTemp       = 4.0
	defaultCooling    = 0.999
)

func (o AnnealOptions) withDefaults() AnnealOptions {
	if o.Iterations <= 0 {
		o.Iterations = defaultIterations
	}
	if o.Restarts <= 0 {
		o.Restarts = defaultRestarts
	}
	if o.Temp <= 0 {
		o.Temp = defaultTemp
	}
	if o.Cooling <= 0 || o.Cooling >= 1 {
		o.Cooling = defaultCooling
	}
	return o
}

// SearchAnneal minimizes the total edge penalty by simulated annealing
// over the connected nodes. It always returns its best placement along
// with the remaining penalty; a nonzero penalty is the caller's decision
// to accept or reject. Each restart is an independent chain over its own
// Placement copy.
func (p *Problem) SearchAnneal(ctx context.Context, hint Placement, opts AnnealOptions) (Placement, int, error) {
	logger := ctxlog.FromContext(ctx)
	opts = opts.withDefaults()

	start, err := p.Allocate(hint, true)
	if err != nil {
		return nil, 0, err
	}

	nodes := p.connectedRoots()
	best := start.clone()
	bestCost := p.Cost(best)
	logger.Debug("Annealing search starting.",
		"nodes", len(nodes), "edges", len(p.edges),
		"initial_cost", bestCost, "iterations", opts.Iterations, "restarts", opts.Restarts)

	for r := 0; r < opts.Restarts && bestCost > 0; r++ {
		rng := rand.New(rand.NewSource(opts.Seed + int64(r)))
		pl, cost := p.annealOnce(rng, start, nodes, opts)
		if cost < bestCost {
			best, bestCost = pl, cost
		}
	}

	logger.Debug("Annealing search finished.", "cost", bestCost, "violations", len(p.Violations(best)))
	return best, bestCost, nil
}

func (p *Problem) annealOnce(rng *rand.Rand, start Placement, nodes []string, opts AnnealOptions) (Placement, int) {
	current := start.clone()
	cost := p.Cost(current)
	best := current.clone()
	bestCost := cost
	temp := opts.Temp

	for i := 0; i < opts.Iterations && bestCost > 0; i++ {
		next := p.propose(rng, current, nodes)
		if next == nil {
			temp *= opts.Cooling
			continue
		}
		nextCost := p.Cost(next)
		delta := nextCost - cost
		if delta <= 0 || rng.Float64() < math.Exp(-float64(delta)/temp) {
			current, cost = next, nextCost
			if cost < bestCost {
				best, bestCost = current.clone(), cost
			}
		}
		temp *= opts.Cooling
	}
	return best, bestCost
}

// propose returns a mutated copy of the placement, or nil when the drawn
// proposal has no legal application (e.g. a move with no free slot).
func (p *Problem) propose(rng *rand.Rand, pl Placement, nodes []string) Placement {
	if len(nodes) == 0 {
		return nil
	}
	switch draw := rng.Intn(5); draw {
	case 0, 1:
		return p.proposeMove(rng, pl, nodes)
	case 2, 3:
		return p.proposeSwap(rng, pl, nodes)
	default:
		return p.proposeRepair(pl)
	}
}

// proposeMove relocates one node to a free slot in its own pool.
func (p *Problem) proposeMove(rng *rand.Rand, pl Placement, nodes []string) Placement {
	id := nodes[rng.Intn(len(nodes))]
	class := p.nodes[id].class
	used := p.usedSlots(pl)[poolClass(class)]
	var free []int
	for s := 0; s < PoolSize(class); s++ {
		if _, taken := used[s]; !taken {
			free = append(free, s)
		}
	}
	if len(free) == 0 {
		return nil
	}
	next := pl.clone()
	next[id] = free[rng.Intn(len(free))]
	return next
}

// proposeSwap exchanges the slots of two nodes sharing a pool.
func (p *Problem) proposeSwap(rng *rand.Rand, pl Placement, nodes []string) Placement {
	// Pools collect in first-seen node order so a fixed seed replays the
	// same proposal sequence.
	byPool := make(map[Class][]string)
	var pools []Class
	for _, id := range nodes {
		pool := poolClass(p.nodes[id].class)
		byPool[pool] = append(byPool[pool], id)
		if len(byPool[pool]) == 2 {
			pools = append(pools, pool)
		}
	}
	if len(pools) == 0 {
		return nil
	}
	ids := byPool[pools[rng.Intn(len(pools))]]
	a := ids[rng.Intn(len(ids))]
	b := ids[rng.Intn(len(ids))]
	if a == b {
		return nil
	}
	next := pl.clone()
	next[a], next[b] = next[b], next[a]
	return next
}

// proposeRepair targets the worst-violating edge and greedily reassigns
// whichever of its endpoints yields the largest total-penalty reduction.
func (p *Problem) proposeRepair(pl Placement) Placement {
	var worst *Edge
	worstPen := 0
	for i := range p.edges {
		if pen := p.edgePenalty(pl, p.edges[i]); pen > worstPen {
			worstPen = pen
			worst = &p.edges[i]
		}
	}
	if worst == nil {
		return nil
	}

	var best Placement
	bestCost := p.Cost(pl)
	for _, id := range []string{p.root(worst.Src), p.root(worst.Dst)} {
		class := p.nodes[id].class
		if PoolSize(class) == 0 {
			continue
		}
		used := p.usedSlots(pl)[poolClass(class)]
		for s := 0; s < PoolSize(class); s++ {
			if _, taken := used[s]; taken && s != pl[id] {
				continue
			}
			next := pl.clone()
			next[id] = s
			if c := p.Cost(next); c < bestCost {
				best, bestCost = next, c
			}
		}
	}
	return best
}
