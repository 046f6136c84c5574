package joinorder

import (
	"math"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/dolthub/go-mysql-server/sql"
)

//go:generate stringer -type=Strategy -linecomment

// Strategy is the search policy used to expand a join group.
type Strategy uint8

const (
	MinCardStrategy Strategy = iota // mincard
	GreedyStrategy                  // greedy
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case MinCardStrategy.String():
		*s = MinCardStrategy
	case GreedyStrategy.String():
		*s = GreedyStrategy
	default:
		return ErrUnknownStrategy.New(string(text))
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if s > GreedyStrategy {
		return nil, ErrUnknownStrategy.New(s.String())
	}
	return []byte(s.String()), nil
}

// vertexSet represents a set of base relations, identified by their ordinal
// in the input component array. Unlike a machine word, a bitset has no upper
// bound on the number of relations, which matters because the greedy
// strategies exist for joins too wide to enumerate.
type vertexSet = *bitset.BitSet

// newVertexSet returns a set sized for n relations containing the given
// ordinals.
func newVertexSet(n int, idx ...int) vertexSet {
	s := bitset.New(uint(n))
	for _, i := range idx {
		s.Set(uint(i))
	}
	return s
}

// intersects returns true if the two sets share at least one relation.
func intersects(a, b vertexSet) bool {
	return a.IntersectionCardinality(b) > 0
}

// isSubsetOf returns true if every relation of s is in o.
func isSubsetOf(s, o vertexSet) bool {
	return o.IsSuperSet(s)
}

// sameSet compares membership only; bitset.Equal also compares capacity.
func sameSet(a, b vertexSet) bool {
	return a.SymmetricDifferenceCardinality(b) == 0
}

// tablesOf returns the lower-cased names of the named relations that make up
// the output of n. Descent stops at the first named node, so an aliased table
// is reported by its alias.
func tablesOf(n sql.Node) []string {
	var names []string
	var walk func(n sql.Node)
	walk = func(n sql.Node) {
		if n == nil {
			return
		}
		if nt, ok := n.(sql.Nameable); ok {
			names = append(names, strings.ToLower(nt.Name()))
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(n)
	return names
}

// clampRows normalizes a row estimate. NaN and negative estimates are treated
// as empty results.
func clampRows(rows float64) float64 {
	if math.IsNaN(rows) || rows < 0 {
		return 0
	}
	return rows
}
