package joinorder

import (
	"strings"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/expression"
	"github.com/dolthub/go-mysql-server/sql/plan"
	"github.com/dolthub/go-mysql-server/sql/transform"
)

// Factory builds the plan and scalar expressions a join order is made of.
type Factory interface {
	// MakeFilter returns child filtered by pred.
	MakeFilter(child sql.Node, pred sql.Expression) sql.Node
	// MakeInnerJoin returns an inner join of left and right on pred. A nil
	// pred is a cross product.
	MakeInnerJoin(left, right sql.Node, pred sql.Expression) sql.Node
	// SplitConjunction returns the atomic conjuncts of pred.
	SplitConjunction(pred sql.Expression) []sql.Expression
	// Conjoin folds preds into a single conjunction, or nil when empty.
	Conjoin(preds []sql.Expression) sql.Expression
	// ReferencedTables returns the lower-cased names of the tables whose
	// columns pred reads.
	ReferencedTables(pred sql.Expression) []string
}

// PlanFactory is the Factory for go-mysql-server plan nodes.
type PlanFactory struct{}

var _ Factory = PlanFactory{}

// NewPlanFactory returns a PlanFactory.
func NewPlanFactory() PlanFactory {
	return PlanFactory{}
}

// MakeFilter implements Factory. Stacked filters are collapsed into one.
func (PlanFactory) MakeFilter(child sql.Node, pred sql.Expression) sql.Node {
	if f, ok := child.(*plan.Filter); ok {
		return plan.NewFilter(expression.NewAnd(f.Expressions()[0], pred), f.Child)
	}
	return plan.NewFilter(pred, child)
}

// MakeInnerJoin implements Factory.
func (PlanFactory) MakeInnerJoin(left, right sql.Node, pred sql.Expression) sql.Node {
	if pred == nil {
		return plan.NewCrossJoin(left, right)
	}
	return plan.NewInnerJoin(left, right, pred)
}

// SplitConjunction implements Factory.
func (f PlanFactory) SplitConjunction(pred sql.Expression) []sql.Expression {
	if pred == nil {
		return nil
	}
	if and, ok := pred.(*expression.And); ok {
		return append(f.SplitConjunction(and.Left), f.SplitConjunction(and.Right)...)
	}
	return []sql.Expression{pred}
}

// Conjoin implements Factory.
func (PlanFactory) Conjoin(preds []sql.Expression) sql.Expression {
	if len(preds) == 0 {
		return nil
	}
	filter := preds[0]
	for _, e := range preds[1:] {
		filter = expression.NewAnd(filter, e)
	}
	return filter
}

// ReferencedTables implements Factory.
func (PlanFactory) ReferencedTables(pred sql.Expression) []string {
	var tables []string
	seen := make(map[string]struct{})
	transform.InspectExpr(pred, func(e sql.Expression) bool {
		if gf, ok := e.(*expression.GetField); ok {
			name := strings.ToLower(gf.Table())
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				tables = append(tables, name)
			}
		}
		return false
	})
	return tables
}
