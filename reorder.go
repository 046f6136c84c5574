package joinorder

import (
	"fmt"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/plan"
	"github.com/dolthub/go-mysql-server/sql/transform"
	"github.com/sirupsen/logrus"
)

// Expander produces a join order. Expand must be called exactly once.
type Expander interface {
	Expand(ctx *sql.Context) (sql.Node, error)
}

// New returns the Expander implementing strategy s.
func New(s Strategy, components []sql.Node, conjuncts []sql.Expression, bctx BuildContext) Expander {
	switch s {
	case MinCardStrategy:
		return NewMinCard(components, conjuncts, bctx)
	case GreedyStrategy:
		return NewGreedy(components, conjuncts, bctx)
	default:
		panic(fmt.Sprintf("unknown join order strategy: %s", s))
	}
}

// Reorder replaces every group of adjacent inner and cross joins in n with
// the join order picked by the configured strategy, priced by an Estimator
// seeded with cfg.TableRows. A group whose conditions contain a subquery or
// read tables produced outside the group is left in place.
//
// A reordered group keeps its output columns in their original order, so
// column indexes of the nodes above it stay valid.
func Reorder(ctx *sql.Context, n sql.Node, cfg Config) (sql.Node, error) {
	bctx := BuildContext{
		Stats:   NewEstimator(cfg.TableRows),
		Factory: NewPlanFactory(),
		Logger:  logrus.WithField("optimizer", "joinorder"),
	}
	return ReorderWith(ctx, n, cfg, bctx)
}

// ReorderWith is Reorder with caller supplied collaborators.
func ReorderWith(ctx *sql.Context, n sql.Node, cfg Config, bctx BuildContext) (sql.Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bctx.Stats == nil || bctx.Factory == nil {
		panic("join order requires a statistician and an expression factory")
	}
	r := &reorderer{cfg: cfg, bctx: bctx.withDefaults()}
	return r.reorder(ctx, n)
}

type reorderer struct {
	cfg  Config
	bctx BuildContext
}

// reorder works bottom up: the components of a join group are reordered
// before the group itself, so the statistics of a component reflect its final
// shape.
func (r *reorderer) reorder(ctx *sql.Context, n sql.Node) (sql.Node, error) {
	components, conjuncts := extractJoinGroup(n)
	if len(components) < r.cfg.MinRelations {
		return r.reorderChildren(ctx, n)
	}
	if !expandable(r.bctx.Factory, components, conjuncts) {
		r.bctx.Logger.WithField("components", len(components)).
			Debug("join order: join group references outer scope, skipping")
		return r.reorderChildren(ctx, n)
	}

	for i, c := range components {
		var err error
		if components[i], err = r.reorder(ctx, c); err != nil {
			return nil, err
		}
	}

	r.bctx.Logger.WithFields(logrus.Fields{
		"strategy":   r.cfg.Strategy.String(),
		"components": len(components),
		"conjuncts":  len(conjuncts),
	}).Debug("join order: expanding join group")
	res, err := New(r.cfg.Strategy, components, conjuncts, r.bctx).Expand(ctx)
	if err != nil {
		return nil, err
	}
	return restoreColumns(components, res)
}

// expandable reports whether a join group can be reordered. Conjuncts with
// subqueries or columns of tables no component produces depend on an outer
// scope and pin the group in place.
func expandable(f Factory, components []sql.Node, conjuncts []sql.Expression) bool {
	owned := make(map[string]struct{})
	for _, c := range components {
		for _, name := range tablesOf(c) {
			owned[name] = struct{}{}
		}
	}
	for _, c := range conjuncts {
		if hasSubquery(c) {
			return false
		}
		for _, name := range f.ReferencedTables(c) {
			if _, ok := owned[name]; !ok {
				return false
			}
		}
	}
	return true
}

func hasSubquery(e sql.Expression) bool {
	var found bool
	transform.InspectExpr(e, func(e sql.Expression) bool {
		if _, ok := e.(*plan.Subquery); ok {
			found = true
		}
		return found
	})
	return found
}

func (r *reorderer) reorderChildren(ctx *sql.Context, n sql.Node) (sql.Node, error) {
	children := n.Children()
	if len(children) == 0 {
		return n, nil
	}
	newChildren := make([]sql.Node, len(children))
	for i, c := range children {
		var err error
		if newChildren[i], err = r.reorder(ctx, c); err != nil {
			return nil, err
		}
	}
	return n.WithChildren(newChildren...)
}

// extractJoinGroup flattens the inner and cross joins rooted at n into the
// relations they join and the atomic predicates they join on. Any other node
// is a single relation; for example InnerJoin(InnerJoin(a, b), LeftJoin(c, d))
// yields the relations {a, b, LeftJoin(c, d)}.
func extractJoinGroup(n sql.Node) ([]sql.Node, []sql.Expression) {
	var cond sql.Expression
	switch n := n.(type) {
	case *plan.InnerJoin:
		cond = n.Cond
	case *plan.CrossJoin:
	default:
		return []sql.Node{n}, nil
	}

	children := n.Children()
	leftV, leftE := extractJoinGroup(children[0])
	rightV, rightE := extractJoinGroup(children[1])

	components := append(leftV, rightV...)
	conjuncts := append(leftE, rightE...)
	if cond != nil {
		conjuncts = append(conjuncts, NewPlanFactory().SplitConjunction(cond)...)
	}
	return components, conjuncts
}
