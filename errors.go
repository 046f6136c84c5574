package joinorder

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrIncompleteCoverage is returned when an expansion finishes without the
	// result covering every input relation.
	ErrIncompleteCoverage = errors.NewKind("join order covers relations %s, expected %s")

	// ErrNoCandidate is returned when an iteration finds no unconsumed
	// component although the result is not complete yet.
	ErrNoCandidate = errors.NewKind("no join candidate left after covering %d of %d relations")

	// ErrDeriveStats wraps a failure of the statistics oracle.
	ErrDeriveStats = errors.NewKind("unable to derive statistics for join candidate")

	// ErrComponentLayout is returned when the leaves of a reordered join group
	// do not match its components one to one.
	ErrComponentLayout = errors.NewKind("reordered join group does not produce component %d exactly once")

	// ErrUnknownStrategy is returned for an unrecognized strategy name.
	ErrUnknownStrategy = errors.NewKind("unknown join order strategy: %q")

	// ErrInvalidConfig is returned when a decoded Config fails validation.
	ErrInvalidConfig = errors.NewKind("invalid join order config: %s")
)
