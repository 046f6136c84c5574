package joinorder

import (
	"strings"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/expression"
	"github.com/dolthub/go-mysql-server/sql/plan"
)

// restoreColumns makes a reordered join group a drop-in replacement for the
// group it came from. The conditions of its joins and filters are rewritten
// against the rows they now evaluate on, and if the components changed
// position the output is projected back to the original column order.
func restoreColumns(components []sql.Node, res sql.Node) (sql.Node, error) {
	res, err := fixJoinIndexes(res)
	if err != nil {
		return nil, err
	}

	order := make([]int, 0, len(components))
	seen := make([]bool, len(components))
	for _, leaf := range joinLeaves(res) {
		idx := componentOf(components, leaf)
		if idx < 0 || seen[idx] {
			return nil, ErrComponentLayout.New(idx)
		}
		seen[idx] = true
		order = append(order, idx)
	}
	for i, ok := range seen {
		if !ok {
			return nil, ErrComponentLayout.New(i)
		}
	}

	offsets := make([]int, len(components))
	var off int
	for _, idx := range order {
		offsets[idx] = off
		off += len(components[idx].Schema())
	}

	var projections []sql.Expression
	var moved bool
	var origOff int
	for i, c := range components {
		if offsets[i] != origOff {
			moved = true
		}
		for j, col := range c.Schema() {
			projections = append(projections,
				expression.NewGetFieldWithTable(offsets[i]+j, col.Type, col.Source, col.Name, col.Nullable))
		}
		origOff += len(c.Schema())
	}
	if !moved {
		return res, nil
	}
	return plan.NewProject(projections, res), nil
}

// fixJoinIndexes rewrites the conditions of the inner joins and filters at the
// top of a join tree against the schema of the rows they are evaluated on.
// Nodes below them are left untouched.
func fixJoinIndexes(n sql.Node) (sql.Node, error) {
	switch n := n.(type) {
	case *plan.InnerJoin, *plan.CrossJoin:
		children := n.Children()
		left, err := fixJoinIndexes(children[0])
		if err != nil {
			return nil, err
		}
		right, err := fixJoinIndexes(children[1])
		if err != nil {
			return nil, err
		}
		ij, ok := n.(*plan.InnerJoin)
		if !ok {
			return plan.NewCrossJoin(left, right), nil
		}
		schema := append(append(sql.Schema{}, left.Schema()...), right.Schema()...)
		cond, err := fixFieldIndexes(schema, ij.Cond)
		if err != nil {
			return nil, err
		}
		return plan.NewInnerJoin(left, right, cond), nil
	case *plan.Filter:
		cond, err := fixFieldIndexes(n.Child.Schema(), n.Expressions()[0])
		if err != nil {
			return nil, err
		}
		return plan.NewFilter(cond, n.Child), nil
	default:
		return n, nil
	}
}

// fixFieldIndexes points every GetField of e at its column in schema, matched
// by table and column name. Fields schema does not hold keep their index.
func fixFieldIndexes(schema sql.Schema, e sql.Expression) (sql.Expression, error) {
	if gf, ok := e.(*expression.GetField); ok {
		if idx := schemaIndex(schema, gf.Table(), gf.Name()); idx >= 0 && idx != gf.Index() {
			return gf.WithIndex(idx), nil
		}
		return e, nil
	}
	children := e.Children()
	if len(children) == 0 {
		return e, nil
	}
	newChildren := make([]sql.Expression, len(children))
	for i, c := range children {
		var err error
		if newChildren[i], err = fixFieldIndexes(schema, c); err != nil {
			return nil, err
		}
	}
	return e.WithChildren(newChildren...)
}

func schemaIndex(schema sql.Schema, table, name string) int {
	for i, col := range schema {
		if strings.EqualFold(col.Source, table) && strings.EqualFold(col.Name, name) {
			return i
		}
	}
	return -1
}

// joinLeaves returns the subtrees joined by the inner and cross joins at the
// top of n, left to right.
func joinLeaves(n sql.Node) []sql.Node {
	switch n.(type) {
	case *plan.InnerJoin, *plan.CrossJoin:
		children := n.Children()
		return append(joinLeaves(children[0]), joinLeaves(children[1])...)
	default:
		return []sql.Node{n}
	}
}

// componentOf returns the index of the component leaf was built from, or -1.
// Filters added on top of a component, or collapsed into its own filter, are
// looked through.
func componentOf(components []sql.Node, leaf sql.Node) int {
	base := unfiltered(leaf)
	for i, c := range components {
		if c == leaf || unfiltered(c) == base {
			return i
		}
	}
	return -1
}

func unfiltered(n sql.Node) sql.Node {
	for {
		f, ok := n.(*plan.Filter)
		if !ok {
			return n
		}
		n = f.Child
	}
}
