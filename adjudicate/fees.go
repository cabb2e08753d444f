package adjudicate

import (
	"github.com/shopspring/decimal"

	"github.com/ahcip/adjudication/rules"
)

var hundred = decimal.NewFromInt(100)

// ComputePayment applies the matched calculate-rule adjustments to the claim
// total, in the order given (rule-priority order). Percentage and fixed
// deltas accumulate on the unrounded running total; rounding to 2 decimal
// places (half-up) happens exactly once at the end so intermediate steps
// cannot compound rounding error. The result is clamped to be non-negative.
func ComputePayment(submittedTotal decimal.Decimal, adjustments []rules.Adjustment) decimal.Decimal {
	total := submittedTotal
	for _, adj := range adjustments {
		switch adj.Type {
		case rules.AdjustmentPercentage:
			total = total.Add(total.Mul(adj.Value).Div(hundred))
		case rules.AdjustmentFixed:
			total = total.Add(adj.Value)
		}
	}

	total = total.Round(2)
	if total.IsNegative() {
		return decimal.Zero.Round(2)
	}
	return total
}
