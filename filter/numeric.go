package filter

import (
	"fmt"
	"strconv"

	"github.com/viant/robinhood/errs"
)

// ParseNumeric parses a "[+|-]N[unit]" numeric predicate (spec §4.F), the
// grammar rbh-find-lustre's CLI flags (-size, -mtime, ...) use to build a
// COMPARE filter: a leading '+' means "greater than", a leading '-' means
// "less than", and no sign means "equal to". unit is returned verbatim
// (e.g. "k", "M", "h", "d") for the caller to interpret, since the
// meaningful multiplier depends on which field the predicate targets
// (bytes vs. seconds).
func ParseNumeric(s string) (op CompareOp, n int64, unit string, err error) {
	if s == "" {
		return 0, 0, "", fmt.Errorf("%w: empty numeric predicate", errs.ErrInvalid)
	}

	rest := s
	op = OpEQ
	switch rest[0] {
	case '+':
		op = OpGT
		rest = rest[1:]
	case '-':
		op = OpLT
		rest = rest[1:]
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, 0, "", fmt.Errorf("%w: numeric predicate %q has no digits", errs.ErrInvalid, s)
	}

	n, convErr := strconv.ParseInt(rest[:i], 10, 64)
	if convErr != nil {
		return 0, 0, "", fmt.Errorf("%w: numeric predicate %q: %v", errs.ErrInvalid, s, convErr)
	}

	unit = rest[i:]
	return op, n, unit, nil
}

// SizeMultiplier maps a ParseNumeric unit suffix to a byte multiplier for
// size-shaped predicates. An empty or unrecognized unit returns 1.
func SizeMultiplier(unit string) int64 {
	switch unit {
	case "k", "K":
		return 1 << 10
	case "M":
		return 1 << 20
	case "G":
		return 1 << 30
	case "T":
		return 1 << 40
	default:
		return 1
	}
}

// TimeMultiplier maps a ParseNumeric unit suffix to a seconds multiplier
// for time-shaped predicates (mtime/atime/ctime). An empty or
// unrecognized unit returns 1.
func TimeMultiplier(unit string) int64 {
	switch unit {
	case "m":
		return 60
	case "h":
		return 3600
	case "d":
		return 86400
	case "w":
		return 7 * 86400
	default:
		return 1
	}
}
