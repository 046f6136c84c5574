package joinorder

import (
	"github.com/dolthub/go-mysql-server/sql"
	"github.com/sirupsen/logrus"
)

// joinOrder is the state shared by the cardinality-driven join order
// strategies. The input is an unordered N-ary inner join: a list of relation
// subtrees (components) and a list of atomic predicates (edges). A strategy
// grows a single result component by folding in one input component per
// iteration until every component is covered:
//
//  1. Each component covers exactly one input relation at construction time,
//     represented by its ordinal in a vertexSet.
//
//  2. Each edge references the set of components whose columns its predicate
//     reads. An edge is subsumed by a combination once the combination covers
//     every relation the edge references, at which point the predicate can be
//     evaluated and is attached to the combination.
//
//  3. An edge is attached at most once. Trial combinations never consume
//     edges; only the combination a strategy accepts does.
//
// The first accepted component becomes the result subtree as is, or filtered
// by its single-table predicates. Later components are joined to the right of
// the result, so the output is a left-deep tree.
//
// Cardinality is never computed here. Every candidate is priced through the
// Statistician, and the expressions are built through the Factory, so the
// same search runs against any plan representation and cost model.
type joinOrder struct {
	bctx BuildContext

	comps []*component
	edges []*edge

	// all is the set of every input relation.
	all vertexSet

	expanded bool
}

// BuildContext bundles the collaborators a strategy calls into.
type BuildContext struct {
	Stats   Statistician
	Factory Factory
	Logger  *logrus.Entry
}

// withDefaults fills in the optional collaborators of b.
func (b BuildContext) withDefaults() BuildContext {
	if b.Logger == nil {
		b.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return b
}

// component is a plan subtree tagged with the input relations it covers.
type component struct {
	covered vertexSet
	node    sql.Node

	// rows memoizes the oracle's estimate for node, valid if hasRows.
	rows    float64
	hasRows bool

	consumed bool
}

// edge is an atomic predicate tagged with the relations it references.
type edge struct {
	pred       sql.Expression
	referenced vertexSet
	consumed   bool
}

// combination is the outcome of folding a candidate component into the
// result. Nothing is committed until the combination is accepted.
type combination struct {
	node    sql.Node
	covered vertexSet

	// subsumed are the indexes of the edges attached by this combination.
	subsumed []int

	// connected is true if some subsumed edge references both sides. A
	// combination of a non-empty result that is not connected is a cross
	// product, even if it carries single-sided predicates.
	connected bool

	// reused is true if node is the candidate's own subtree.
	reused bool

	rows    float64
	hasRows bool
}

func newJoinOrder(components []sql.Node, conjuncts []sql.Expression, bctx BuildContext) *joinOrder {
	if len(components) == 0 {
		panic("join order requires at least one component")
	}
	if bctx.Stats == nil || bctx.Factory == nil {
		panic("join order requires a statistician and an expression factory")
	}
	bctx = bctx.withDefaults()

	n := len(components)
	j := &joinOrder{
		bctx:  bctx,
		comps: make([]*component, n),
		all:   newVertexSet(n),
	}

	// owners maps a table name to the component producing its columns. A
	// name produced by more than one component belongs to the first one.
	owners := make(map[string]int)
	for i, node := range components {
		if node == nil {
			panic("join order component is nil")
		}
		j.all.Set(uint(i))
		j.comps[i] = &component{covered: newVertexSet(n, i), node: node}
		for _, name := range tablesOf(node) {
			if _, ok := owners[name]; !ok {
				owners[name] = i
			}
		}
	}

	for _, conjunct := range conjuncts {
		for _, pred := range bctx.Factory.SplitConjunction(conjunct) {
			// Tables no component produces are outer references; they are
			// constant for the purpose of this join.
			referenced := newVertexSet(n)
			for _, name := range bctx.Factory.ReferencedTables(pred) {
				if idx, ok := owners[name]; ok {
					referenced.Set(uint(idx))
				}
			}
			j.edges = append(j.edges, &edge{pred: pred, referenced: referenced})
		}
	}
	return j
}

// newResult returns an empty result component.
func (j *joinOrder) newResult() *component {
	return &component{covered: newVertexSet(len(j.comps))}
}

// beginExpand guards against a strategy being expanded more than once.
func (j *joinOrder) beginExpand() {
	if j.expanded {
		panic("join order is already expanded")
	}
	j.expanded = true
}

// combine folds candidate into result using every unconsumed edge the union
// of the two subsumes. An empty result yields the candidate itself, filtered
// if single-table edges apply. Otherwise the result is an inner join, which
// is a cross product when no edge applies.
func (j *joinOrder) combine(result, candidate *component) *combination {
	c := &combination{covered: result.covered.Union(candidate.covered)}

	var preds []sql.Expression
	for i, e := range j.edges {
		if e.consumed || !isSubsetOf(e.referenced, c.covered) {
			continue
		}
		preds = append(preds, e.pred)
		c.subsumed = append(c.subsumed, i)
		if intersects(e.referenced, result.covered) && intersects(e.referenced, candidate.covered) {
			c.connected = true
		}
	}

	cond := j.bctx.Factory.Conjoin(preds)
	switch {
	case result.node == nil && cond == nil:
		c.node = candidate.node
		c.reused = true
	case result.node == nil:
		c.node = j.bctx.Factory.MakeFilter(candidate.node, cond)
	default:
		c.node = j.bctx.Factory.MakeInnerJoin(result.node, candidate.node, cond)
	}
	return c
}

// estimate prices c through the statistician. A combination that reuses the
// candidate's subtree reuses its memoized estimate as well, so the oracle
// sees every physical subtree at most once.
func (j *joinOrder) estimate(ctx *sql.Context, c *combination, candidate *component) error {
	if c.hasRows {
		return nil
	}
	if c.reused {
		if err := j.deriveComponentStats(ctx, candidate); err != nil {
			return err
		}
		c.rows, c.hasRows = candidate.rows, true
		return nil
	}
	rows, err := j.deriveStats(ctx, c.node)
	if err != nil {
		return err
	}
	c.rows, c.hasRows = rows, true
	return nil
}

func (j *joinOrder) deriveComponentStats(ctx *sql.Context, comp *component) error {
	if comp.hasRows {
		return nil
	}
	rows, err := j.deriveStats(ctx, comp.node)
	if err != nil {
		return err
	}
	comp.rows, comp.hasRows = rows, true
	return nil
}

func (j *joinOrder) deriveStats(ctx *sql.Context, n sql.Node) (float64, error) {
	rows, err := j.bctx.Stats.DeriveStats(ctx, n)
	if err != nil {
		return 0, ErrDeriveStats.Wrap(err)
	}
	return clampRows(rows), nil
}

// accept commits c as the new result, consuming the candidate at idx and the
// edges c subsumed.
func (j *joinOrder) accept(result *component, idx int, c *combination) {
	j.comps[idx].consumed = true
	result.node = c.node
	result.covered = c.covered
	result.rows, result.hasRows = c.rows, c.hasRows
	j.markUsedEdges(c.subsumed)
}

// markUsedEdges consumes the edges attached by an accepted combination.
func (j *joinOrder) markUsedEdges(subsumed []int) {
	for _, i := range subsumed {
		if j.edges[i].consumed {
			panic("join order edge attached twice")
		}
		j.edges[i].consumed = true
	}
}

// checkCoverage verifies the result covers every input relation.
func (j *joinOrder) checkCoverage(result *component) error {
	if result.node == nil || !sameSet(result.covered, j.all) {
		return ErrIncompleteCoverage.New(result.covered.String(), j.all.String())
	}
	return nil
}

func (j *joinOrder) logAccepted(s Strategy, step, idx int, c *combination) {
	fields := logrus.Fields{
		"strategy":  s.String(),
		"step":      step,
		"component": idx,
		"covered":   c.covered.String(),
		"edges":     len(c.subsumed),
		"cross":     step > 0 && !c.connected,
	}
	if c.hasRows {
		fields["rows"] = c.rows
	}
	j.bctx.Logger.WithFields(fields).Debug("join order: accepted combination")
}
