package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// MONEY TOLERANCE
// =============================================================================

// Epsilon is the tolerance used for every paid/due comparison, in currency
// units. Dividing a gross amount across occupant slots can produce
// non-terminating decimals, so shares that reassemble to within a cent of
// the whole still count as the whole.
var Epsilon = decimal.NewFromFloat(0.01)

// gteApprox reports a >= b - Epsilon.
func gteApprox(a, b decimal.Decimal) bool {
	return a.GreaterThanOrEqual(b.Sub(Epsilon))
}

// aboveEpsilon reports a > Epsilon.
func aboveEpsilon(a decimal.Decimal) bool {
	return a.GreaterThan(Epsilon)
}

// withinEpsilon reports |a - b| <= Epsilon.
func withinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}
