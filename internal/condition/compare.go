package condition

import (
	"fmt"
	"strings"

	"github.com/roach88/carbonspin/internal/landunit"
)

// Operator is a comparison operator.
type Operator string

const (
	OpLess    Operator = "<"
	OpEqual   Operator = "="
	OpAtLeast Operator = ">="
	// OpBetween matches low <= v < high.
	OpBetween Operator = "between"
	OpIn      Operator = "in"
	OpNotIn   Operator = "not in"
)

// ParseOperator normalizes an operator token. "==" is accepted for "=".
// Unknown tokens are returned unchanged and never match.
func ParseOperator(s string) Operator {
	op := strings.ToLower(strings.TrimSpace(s))
	switch op {
	case "==":
		return OpEqual
	case "not_in", "notin":
		return OpNotIn
	}
	return Operator(op)
}

// Scalar is a comparison operand: a number or a string.
type Scalar struct {
	Num   float64
	Str   string
	IsNum bool
}

// Number returns a numeric scalar.
func Number(f float64) Scalar { return Scalar{Num: f, IsNum: true} }

// Text returns a string scalar.
func Text(s string) Scalar { return Scalar{Str: s} }

func (s Scalar) String() string {
	if s.IsNum {
		return fmt.Sprintf("%g", s.Num)
	}
	return s.Str
}

// Comparison pairs an operator with its operands. Single-operand operators
// use Values[0]; between uses Values[0] and Values[1]; set operators use
// every value.
type Comparison struct {
	Op     Operator
	Values []Scalar
}

// Matches reports whether actual satisfies the comparison. Unknown
// operators, missing operands and type mismatches are false.
func (c Comparison) Matches(actual any) bool {
	switch c.Op {
	case OpLess, OpAtLeast:
		if len(c.Values) < 1 || !c.Values[0].IsNum {
			return false
		}
		v, ok := landunit.ToFloat(actual)
		if !ok {
			return false
		}
		if c.Op == OpLess {
			return v < c.Values[0].Num
		}
		return v >= c.Values[0].Num
	case OpEqual:
		return len(c.Values) >= 1 && equalScalar(actual, c.Values[0])
	case OpBetween:
		if len(c.Values) < 2 || !c.Values[0].IsNum || !c.Values[1].IsNum {
			return false
		}
		v, ok := landunit.ToFloat(actual)
		if !ok {
			return false
		}
		return v >= c.Values[0].Num && v < c.Values[1].Num
	case OpIn, OpNotIn:
		found := false
		for _, target := range c.Values {
			if equalScalar(actual, target) {
				found = true
				break
			}
		}
		if c.Op == OpIn {
			return found
		}
		return !found
	default:
		return false
	}
}

func equalScalar(actual any, target Scalar) bool {
	if target.IsNum {
		v, ok := landunit.ToFloat(actual)
		return ok && v == target.Num
	}
	s, ok := actual.(string)
	return ok && s == target.Str
}
