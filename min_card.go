package joinorder

import (
	"github.com/dolthub/go-mysql-server/sql"
)

// MinCard builds a left-deep join order that, at every step, folds in the
// component giving the smallest estimated result. Ties go to the component
// that comes first in the input.
type MinCard struct {
	*joinOrder
	result *component
}

var _ Expander = (*MinCard)(nil)

// NewMinCard returns a MinCard strategy over the given components and
// conjuncts.
func NewMinCard(components []sql.Node, conjuncts []sql.Expression, bctx BuildContext) *MinCard {
	return &MinCard{joinOrder: newJoinOrder(components, conjuncts, bctx)}
}

// Expand implements Expander.
func (m *MinCard) Expand(ctx *sql.Context) (sql.Node, error) {
	m.beginExpand()
	m.result = m.newResult()

	for covered := 0; covered < len(m.comps); covered++ {
		bestIdx := -1
		var best *combination
		for i, comp := range m.comps {
			if comp.consumed {
				continue
			}
			c := m.combine(m.result, comp)
			if err := m.estimate(ctx, c, comp); err != nil {
				return nil, err
			}
			if best == nil || c.rows < best.rows {
				bestIdx, best = i, c
			}
		}
		if best == nil {
			return nil, ErrNoCandidate.New(covered, len(m.comps))
		}

		m.accept(m.result, bestIdx, best)
		m.logAccepted(MinCardStrategy, covered, bestIdx, best)
	}

	if err := m.checkCoverage(m.result); err != nil {
		return nil, err
	}
	return m.result.node, nil
}
