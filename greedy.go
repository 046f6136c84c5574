package joinorder

import (
	"github.com/dolthub/go-mysql-server/sql"
)

// Greedy builds a left-deep join order like MinCard, with two changes that
// keep cross products out of the lower levels of the tree:
//
//  1. The result is seeded with the component attached to the most edges.
//
//  2. A candidate that would form a cross product with the result is only
//     considered once no remaining candidate connects to the result through
//     an edge. Among the candidates of the preferred kind, the one giving the
//     smallest estimated result wins.
type Greedy struct {
	*joinOrder
	result *component
}

var _ Expander = (*Greedy)(nil)

// NewGreedy returns a Greedy strategy over the given components and
// conjuncts.
func NewGreedy(components []sql.Node, conjuncts []sql.Expression, bctx BuildContext) *Greedy {
	return &Greedy{joinOrder: newJoinOrder(components, conjuncts, bctx)}
}

// Expand implements Expander.
func (g *Greedy) Expand(ctx *sql.Context) (sql.Node, error) {
	g.beginExpand()
	g.result = g.newResult()

	seed := g.seed()
	if seed < 0 {
		return nil, ErrNoCandidate.New(0, len(g.comps))
	}
	c := g.combine(g.result, g.comps[seed])
	g.accept(g.result, seed, c)
	g.logAccepted(GreedyStrategy, 0, seed, c)

	for covered := 1; covered < len(g.comps); covered++ {
		idx, best, err := g.next(ctx)
		if err != nil {
			return nil, err
		}
		if best == nil {
			return nil, ErrNoCandidate.New(covered, len(g.comps))
		}
		g.accept(g.result, idx, best)
		g.logAccepted(GreedyStrategy, covered, idx, best)
	}

	if err := g.checkCoverage(g.result); err != nil {
		return nil, err
	}
	return g.result.node, nil
}

// degree returns the number of unconsumed edges referencing comp.
func (g *Greedy) degree(comp *component) int {
	var d int
	for _, e := range g.edges {
		if !e.consumed && intersects(e.referenced, comp.covered) {
			d++
		}
	}
	return d
}

// seed returns the index of the unconsumed component with the highest
// degree, the first one on ties, or -1 if every component is consumed. With
// no edges at all this is the first unconsumed component.
func (g *Greedy) seed() int {
	best, bestDegree := -1, -1
	for i, comp := range g.comps {
		if comp.consumed {
			continue
		}
		if d := g.degree(comp); d > bestDegree {
			best, bestDegree = i, d
		}
	}
	return best
}

// next picks the combination to accept in this iteration. Candidates are
// classified before any statistics are derived, so cross products are only
// priced when nothing else is left.
func (g *Greedy) next(ctx *sql.Context) (int, *combination, error) {
	var joins, crosses []int
	trials := make([]*combination, len(g.comps))
	for i, comp := range g.comps {
		if comp.consumed {
			continue
		}
		c := g.combine(g.result, comp)
		trials[i] = c
		if c.connected {
			joins = append(joins, i)
		} else {
			crosses = append(crosses, i)
		}
	}

	candidates := joins
	if len(candidates) == 0 {
		candidates = crosses
	}

	bestIdx := -1
	var best *combination
	for _, i := range candidates {
		c := trials[i]
		if err := g.estimate(ctx, c, g.comps[i]); err != nil {
			return -1, nil, err
		}
		if best == nil || c.rows < best.rows {
			bestIdx, best = i, c
		}
	}
	return bestIdx, best, nil
}
