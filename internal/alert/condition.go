package alert

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tolerance sets the epsilon for equal conditions: the larger of Absolute
// and Relative times |target|.
type Tolerance struct {
	Absolute decimal.Decimal
	Relative decimal.Decimal
}

func DefaultTolerance() Tolerance {
	return Tolerance{Relative: decimal.RequireFromString("0.0001")}
}

func (t Tolerance) Epsilon(target decimal.Decimal) decimal.Decimal {
	rel := t.Relative.Mul(target.Abs())
	if t.Absolute.GreaterThan(rel) {
		return t.Absolute
	}
	return rel
}

// Evaluate reports whether price satisfies cond against target.
func Evaluate(cond Condition, price, target decimal.Decimal, tol Tolerance) (bool, error) {
	switch cond {
	case Above:
		return price.GreaterThanOrEqual(target), nil
	case Below:
		return price.LessThanOrEqual(target), nil
	case Equal:
		return price.Sub(target).Abs().LessThan(tol.Epsilon(target)), nil
	default:
		return false, fmt.Errorf("unknown condition %q", cond)
	}
}
