package margin

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PercentChange returns the relative change from old to new as a
// percentage, truncated to two decimal places. When old is exactly
// zero the change is reported as a flat 100% increase instead of a
// division error: a figure that appeared from nothing doubled, as far
// as the alerting thresholds care.
func PercentChange(newVal, oldVal decimal.Decimal) decimal.Decimal {
	if oldVal.IsZero() {
		return hundred
	}
	return newVal.Sub(oldVal).Div(oldVal).Mul(hundred).Truncate(2)
}
