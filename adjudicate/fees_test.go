package adjudicate

import (
	"testing"

	"github.com/ahcip/adjudication/rules"
)

func TestComputePayment(t *testing.T) {
	tests := []struct {
		name        string
		submitted   string
		adjustments []rules.Adjustment
		want        string
	}{
		{
			name:      "no adjustments",
			submitted: "100.00",
			want:      "100.00",
		},
		{
			name:      "single percentage discount",
			submitted: "100.00",
			adjustments: []rules.Adjustment{
				{Type: rules.AdjustmentPercentage, Value: num("-10")},
			},
			want: "90.00",
		},
		{
			name:      "fixed copay deduction",
			submitted: "100.00",
			adjustments: []rules.Adjustment{
				{Type: rules.AdjustmentFixed, Value: num("-25")},
			},
			want: "75.00",
		},
		{
			name:      "percentage then fixed in order",
			submitted: "200.00",
			adjustments: []rules.Adjustment{
				{Type: rules.AdjustmentPercentage, Value: num("-10")},
				{Type: rules.AdjustmentFixed, Value: num("-20")},
			},
			want: "160.00",
		},
		{
			name:      "compounding percentages",
			submitted: "100.00",
			adjustments: []rules.Adjustment{
				{Type: rules.AdjustmentPercentage, Value: num("-10")},
				{Type: rules.AdjustmentPercentage, Value: num("-10")},
			},
			want: "81.00",
		},
		{
			name:      "rounding happens once at the end",
			submitted: "20.01",
			adjustments: []rules.Adjustment{
				{Type: rules.AdjustmentPercentage, Value: num("-10")},
			},
			// 20.01 * 0.9 = 18.009, half-up to 18.01.
			want: "18.01",
		},
		{
			name:      "intermediate precision survives",
			submitted: "10.00",
			adjustments: []rules.Adjustment{
				{Type: rules.AdjustmentPercentage, Value: num("-33.333")},
				{Type: rules.AdjustmentPercentage, Value: num("50")},
			},
			// 10 * 0.66667 * 1.5 = 10.00005, rounds to 10.00.
			want: "10.00",
		},
		{
			name:      "clamped at zero",
			submitted: "50.00",
			adjustments: []rules.Adjustment{
				{Type: rules.AdjustmentFixed, Value: num("-80")},
			},
			want: "0.00",
		},
		{
			name:      "positive surcharge",
			submitted: "100.00",
			adjustments: []rules.Adjustment{
				{Type: rules.AdjustmentPercentage, Value: num("15")},
			},
			want: "115.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePayment(num(tt.submitted), tt.adjustments)
			if got.StringFixed(2) != tt.want {
				t.Errorf("ComputePayment(%s) = %s, want %s", tt.submitted, got.StringFixed(2), tt.want)
			}
		})
	}
}
