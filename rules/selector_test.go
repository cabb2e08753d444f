package rules

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahcip/adjudication/condition"
)

func selectorRule(code string, ruleType Type, priority int) *Rule {
	return &Rule{
		ID:        uuid.New(),
		Code:      code,
		Name:      code,
		Type:      ruleType,
		Action:    ActionFlag,
		Condition: condition.Leaf("totalAmount", condition.OpGt, condition.Number(decimal.NewFromInt(0))),
		Priority:  priority,
		IsActive:  true,
	}
}

func TestSelectFiltersAndOrders(t *testing.T) {
	asOf := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inactive := selectorRule("VAL-0004", TypeValidation, 5)
	inactive.IsActive = false

	expired := selectorRule("VAL-0005", TypeValidation, 5)
	expired.EffectiveTo = &past

	notYet := selectorRule("VAL-0006", TypeValidation, 5)
	notYet.EffectiveFrom = &future

	wrongPhase := selectorRule("ADJ-0001", TypeAdjudication, 1)

	snap := &Snapshot{Rules: []*Rule{
		selectorRule("VAL-0003", TypeValidation, 20),
		inactive,
		expired,
		notYet,
		wrongPhase,
		selectorRule("VAL-0001", TypeValidation, 10),
		selectorRule("VAL-0002", TypeValidation, 10),
	}}

	ordered, excluded := Select(snap, TypeValidation, asOf)

	gotCodes := make([]string, len(ordered))
	for i, r := range ordered {
		gotCodes[i] = r.Code
	}
	wantCodes := []string{"VAL-0001", "VAL-0002", "VAL-0003"}
	if len(gotCodes) != len(wantCodes) {
		t.Fatalf("selected %v, want %v", gotCodes, wantCodes)
	}
	for i := range wantCodes {
		if gotCodes[i] != wantCodes[i] {
			t.Errorf("ordered[%d] = %s, want %s", i, gotCodes[i], wantCodes[i])
		}
	}

	reasons := make(map[string]string)
	for _, ex := range excluded {
		reasons[ex.Rule.Code] = ex.Reason
	}
	if reasons["VAL-0004"] != ExcludedInactive {
		t.Errorf("VAL-0004 exclusion = %q, want %q", reasons["VAL-0004"], ExcludedInactive)
	}
	if reasons["VAL-0005"] != ExcludedExpired {
		t.Errorf("VAL-0005 exclusion = %q, want %q", reasons["VAL-0005"], ExcludedExpired)
	}
	if reasons["VAL-0006"] != ExcludedNotYetInForce {
		t.Errorf("VAL-0006 exclusion = %q, want %q", reasons["VAL-0006"], ExcludedNotYetInForce)
	}
	// Rules of the other phase are not considered, so not excluded either.
	if _, ok := reasons["ADJ-0001"]; ok {
		t.Error("adjudication rule should not appear in validation-phase exclusions")
	}
}

func TestSelectPriorityTiesBreakOnCode(t *testing.T) {
	snap := &Snapshot{Rules: []*Rule{
		selectorRule("ADJ-0002", TypeAdjudication, 10),
		selectorRule("ADJ-0001", TypeAdjudication, 10),
		selectorRule("ADJ-0003", TypeAdjudication, 10),
	}}

	ordered, _ := Select(snap, TypeAdjudication, time.Now())
	want := []string{"ADJ-0001", "ADJ-0002", "ADJ-0003"}
	for i, r := range ordered {
		if r.Code != want[i] {
			t.Errorf("ordered[%d] = %s, want %s", i, r.Code, want[i])
		}
	}
}

func TestEffectiveWindowBoundsAreInclusive(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	rule := selectorRule("VAL-0001", TypeValidation, 1)
	rule.EffectiveFrom = &from
	rule.EffectiveTo = &to

	testCases := []struct {
		name string
		asOf time.Time
		want bool
	}{
		{"at effectiveFrom", from, true},
		{"at effectiveTo", to, true},
		{"inside window", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), true},
		{"before window", from.Add(-time.Second), false},
		{"after window", to.Add(time.Second), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rule.EffectiveAt(tc.asOf); got != tc.want {
				t.Errorf("EffectiveAt(%s) = %v, want %v", tc.asOf, got, tc.want)
			}
		})
	}
}
