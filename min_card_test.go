package joinorder

import (
	"errors"
	"math"
	"testing"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type expandTest struct {
	name   string
	tables []string
	// preds are built from equalities like "a.i = b.i" or, with a single
	// table, "a.s" compared against a literal.
	preds []string
	rows  map[string]float64
	shape string
}

func (tt expandTest) build() ([]sql.Node, []sql.Expression) {
	nodes := make([]sql.Node, len(tt.tables))
	for i, name := range tt.tables {
		nodes[i] = tableNode(name)
	}
	preds := make([]sql.Expression, len(tt.preds))
	for i, p := range tt.preds {
		if len(p) == 3 {
			preds[i] = newLitEq(p, "x")
		} else {
			preds[i] = newEq(p)
		}
	}
	return nodes, preds
}

func runExpandTests(t *testing.T, newExpander func([]sql.Node, []sql.Expression, BuildContext) Expander, tests []expandTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, preds := tt.build()
			stats := newFakeStats(tt.rows)
			res, err := newExpander(nodes, preds, testBuildContext(stats)).Expand(sql.NewEmptyContext())
			require.NoError(t, err)
			require.Equal(t, tt.shape, shape(res))
			requireCovers(t, res, tt.tables...)
			requireExactlyOnce(t, res, preds...)
			stats.requireDerivedOnce(t)
		})
	}
}

func newMinCard(components []sql.Node, conjuncts []sql.Expression, bctx BuildContext) Expander {
	return NewMinCard(components, conjuncts, bctx)
}

func TestMinCardExpand(t *testing.T) {
	runExpandTests(t, newMinCard, []expandTest{
		{
			name:   "single relation",
			tables: []string{"a"},
			shape:  "a",
		},
		{
			name:   "single relation with filter",
			tables: []string{"a"},
			preds:  []string{"a.s"},
			shape:  "filter(a)",
		},
		{
			name:   "two relations",
			tables: []string{"b", "a"},
			preds:  []string{"a.i = b.i"},
			rows:   map[string]float64{"a": 10, "b": 20},
			shape:  "join(a,b)",
		},
		{
			name:   "chain",
			tables: []string{"a", "b", "c"},
			preds:  []string{"a.i = b.i", "b.i = c.i"},
			rows:   map[string]float64{"a": 10, "b": 100, "c": 1000, "a,b": 50},
			shape:  "join(join(a,b),c)",
		},
		{
			name:   "smallest first relation wins",
			tables: []string{"a", "b", "c"},
			preds:  []string{"a.i = b.i", "b.i = c.i"},
			rows:   map[string]float64{"a": 1000, "b": 100, "c": 10, "b,c": 50},
			shape:  "join(join(c,b),a)",
		},
		{
			name:   "cheapest cross product is taken",
			tables: []string{"a", "b", "c"},
			preds:  []string{"a.i = b.i", "b.i = c.i"},
			rows:   map[string]float64{"a": 10, "b": 100, "c": 20, "a,b": 500, "a,c": 200},
			shape:  "join(cross(a,c),b)",
		},
		{
			name:   "no predicates",
			tables: []string{"a", "b", "c"},
			rows:   map[string]float64{"a": 1, "b": 2, "c": 3},
			shape:  "cross(cross(a,b),c)",
		},
		{
			name:   "ties keep input order",
			tables: []string{"a", "b", "c"},
			preds:  []string{"a.i = b.i", "b.i = c.i"},
			shape:  "join(join(a,b),c)",
		},
		{
			name:   "filters stay with their relation",
			tables: []string{"a", "b", "c"},
			preds:  []string{"a.i = b.i", "c.s", "b.i = c.i"},
			rows:   map[string]float64{"c": 1, "b,c": 50},
			shape:  "join(join(filter(c),b),a)",
		},
		{
			name:   "zero and invalid estimates",
			tables: []string{"b", "a"},
			preds:  []string{"a.i = b.i"},
			rows:   map[string]float64{"a": math.NaN(), "b": 5},
			shape:  "join(a,b)",
		},
	})
}

func TestMinCardOuterReference(t *testing.T) {
	a, b := tableNode("a"), tableNode("b")
	outer := newEq("y.i = z.i")
	ab := newEq("a.i = b.i")
	stats := newFakeStats(nil)

	res, err := NewMinCard([]sql.Node{a, b}, []sql.Expression{ab, outer}, testBuildContext(stats)).
		Expand(sql.NewEmptyContext())
	require.NoError(t, err)
	require.Equal(t, "join(filter(a),b)", shape(res))
	requireExactlyOnce(t, res, ab, outer)
}

func TestMinCardDeterministic(t *testing.T) {
	tt := expandTest{
		tables: []string{"a", "b", "c", "d"},
		preds:  []string{"a.i = b.i", "c.i = d.i", "b.i = d.i", "a.s"},
	}
	var results []string
	for i := 0; i < 5; i++ {
		nodes, preds := tt.build()
		res, err := NewMinCard(nodes, preds, testBuildContext(newFakeStats(nil))).Expand(sql.NewEmptyContext())
		require.NoError(t, err)
		results = append(results, res.String())
	}
	for _, r := range results[1:] {
		require.Equal(t, results[0], r)
	}
}

func TestMinCardStatsError(t *testing.T) {
	stats := newFakeStats(nil)
	stats.err = errors.New("no statistics")
	nodes, preds := expandTest{
		tables: []string{"a", "b"},
		preds:  []string{"a.i = b.i"},
	}.build()

	res, err := NewMinCard(nodes, preds, testBuildContext(stats)).Expand(sql.NewEmptyContext())
	require.Error(t, err)
	require.Nil(t, res)
	require.True(t, ErrDeriveStats.Is(err))
}

func TestMinCardExpandTwice(t *testing.T) {
	m := NewMinCard([]sql.Node{tableNode("a")}, nil, testBuildContext(newFakeStats(nil)))
	_, err := m.Expand(sql.NewEmptyContext())
	require.NoError(t, err)
	require.Panics(t, func() { m.Expand(sql.NewEmptyContext()) })
}

func TestMinCardConsumesEverything(t *testing.T) {
	nodes, preds := expandTest{
		tables: []string{"a", "b", "c"},
		preds:  []string{"a.i = b.i", "b.i = c.i", "c.s"},
	}.build()
	m := NewMinCard(nodes, preds, testBuildContext(newFakeStats(nil)))
	_, err := m.Expand(sql.NewEmptyContext())
	require.NoError(t, err)
	for _, c := range m.comps {
		require.True(t, c.consumed)
	}
	for _, e := range m.edges {
		require.True(t, e.consumed)
	}
	require.True(t, sameSet(m.all, m.result.covered))
}

func TestMinCardLogsAcceptedCombinations(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	nodes, preds := expandTest{
		tables: []string{"a", "b", "c"},
		preds:  []string{"a.i = b.i"},
	}.build()
	bctx := testBuildContext(newFakeStats(nil))
	bctx.Logger = logrus.NewEntry(logger)

	_, err := NewMinCard(nodes, preds, bctx).Expand(sql.NewEmptyContext())
	require.NoError(t, err)

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	for i, e := range entries {
		require.Equal(t, logrus.DebugLevel, e.Level)
		require.Equal(t, "mincard", e.Data["strategy"])
		require.Equal(t, i, e.Data["step"])
	}
	require.Equal(t, false, entries[1].Data["cross"])
	require.Equal(t, true, entries[2].Data["cross"])
}
