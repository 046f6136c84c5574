package joinorder

import (
	"math"
	"strings"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/expression"
	"github.com/dolthub/go-mysql-server/sql/plan"
	lru "github.com/hashicorp/golang-lru"
)

// Statistician is the cardinality oracle consulted while searching for a join
// order. DeriveStats returns the estimated number of rows n produces.
type Statistician interface {
	DeriveStats(ctx *sql.Context, n sql.Node) (float64, error)
}

const (
	// unknownRowCount is the row count assumed for a relation without
	// statistics.
	unknownRowCount = 1000

	// unknownFilterSelectivity is the fraction of rows assumed to pass a
	// predicate we know nothing about.
	unknownFilterSelectivity = 1.0 / 3.0

	tableRowCacheSize = 256
)

// Estimator is a heuristic Statistician. Base table cardinalities come from
// configuration or the table itself; filters and joins scale them with fixed
// selectivities.
type Estimator struct {
	tableRows map[string]float64
	leafRows  *lru.Cache
}

var _ Statistician = (*Estimator)(nil)

// NewEstimator returns an Estimator using the given per-table row counts.
// Table names are matched case-insensitively.
func NewEstimator(tableRows map[string]float64) *Estimator {
	cache, err := lru.New(tableRowCacheSize)
	if err != nil {
		panic(err)
	}
	rows := make(map[string]float64, len(tableRows))
	for name, n := range tableRows {
		rows[strings.ToLower(name)] = n
	}
	return &Estimator{tableRows: rows, leafRows: cache}
}

// DeriveStats implements Statistician.
func (e *Estimator) DeriveStats(ctx *sql.Context, n sql.Node) (float64, error) {
	rows, err := e.rows(ctx, n)
	if err != nil {
		return 0, err
	}
	return clampRows(rows), nil
}

func (e *Estimator) rows(ctx *sql.Context, node sql.Node) (float64, error) {
	switch n := node.(type) {
	case *plan.Filter:
		child, err := e.rows(ctx, n.Child)
		if err != nil {
			return 0, err
		}
		conjuncts := NewPlanFactory().SplitConjunction(n.Expressions()[0])
		return child * math.Pow(unknownFilterSelectivity, float64(len(conjuncts))), nil
	case *plan.CrossJoin:
		children := n.Children()
		left, right, err := e.binaryRows(ctx, children[0], children[1])
		if err != nil {
			return 0, err
		}
		return left * right, nil
	case *plan.InnerJoin:
		children := n.Children()
		left, right, err := e.binaryRows(ctx, children[0], children[1])
		if err != nil {
			return 0, err
		}
		sel := joinSelectivity(n.Cond, tablesOf(children[0]), tablesOf(children[1]), left, right)
		return left * right * sel, nil
	case sql.Nameable:
		return e.leafRowCount(ctx, node)
	}

	children := node.Children()
	if len(children) == 1 {
		return e.rows(ctx, children[0])
	}
	return unknownRowCount, nil
}

func (e *Estimator) binaryRows(ctx *sql.Context, l, r sql.Node) (float64, float64, error) {
	left, err := e.rows(ctx, l)
	if err != nil {
		return 0, 0, err
	}
	right, err := e.rows(ctx, r)
	if err != nil {
		return 0, 0, err
	}
	return left, right, nil
}

// leafRowCount resolves the cardinality of a named relation. Aliases that are
// not configured themselves fall through to the relation they name.
func (e *Estimator) leafRowCount(ctx *sql.Context, n sql.Node) (float64, error) {
	name := strings.ToLower(n.(sql.Nameable).Name())
	if rows, ok := e.tableRows[name]; ok {
		return rows, nil
	}
	if rows, ok := e.leafRows.Get(name); ok {
		return rows.(float64), nil
	}

	var rows float64
	if st, ok := statisticsTable(n); ok {
		cnt, err := st.NumRows(ctx)
		if err != nil {
			return 0, err
		}
		rows = float64(cnt)
	} else if children := n.Children(); len(children) == 1 {
		return e.rows(ctx, children[0])
	} else {
		rows = unknownRowCount
	}
	e.leafRows.Add(name, rows)
	return rows, nil
}

// statisticsTable returns the table behind n if it keeps statistics.
func statisticsTable(n sql.Node) (sql.StatisticsTable, bool) {
	if rt, ok := n.(*plan.ResolvedTable); ok {
		st, ok := rt.Table.(sql.StatisticsTable)
		return st, ok
	}
	st, ok := n.(sql.StatisticsTable)
	return st, ok
}

// joinSelectivity estimates the fraction of the cross product of two inputs
// that survives cond. An equality between columns of opposite sides behaves
// like a key join and keeps max(left, right) rows; every other conjunct keeps
// a third.
func joinSelectivity(cond sql.Expression, leftTables, rightTables []string, left, right float64) float64 {
	sel := 1.0
	for _, c := range NewPlanFactory().SplitConjunction(cond) {
		if isCrossSideEquality(c, leftTables, rightTables) {
			sel /= math.Max(1, math.Min(left, right))
			continue
		}
		sel *= unknownFilterSelectivity
	}
	return sel
}

func isCrossSideEquality(c sql.Expression, leftTables, rightTables []string) bool {
	eq, ok := c.(*expression.Equals)
	if !ok {
		return false
	}
	args := eq.Children()
	l, lok := args[0].(*expression.GetField)
	r, rok := args[1].(*expression.GetField)
	if !lok || !rok {
		return false
	}
	lt, rt := strings.ToLower(l.Table()), strings.ToLower(r.Table())
	return (contains(leftTables, lt) && contains(rightTables, rt)) ||
		(contains(leftTables, rt) && contains(rightTables, lt))
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
