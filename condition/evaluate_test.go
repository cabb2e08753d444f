package condition

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sampleFacts() MapFacts {
	return MapFacts{
		"totalAmount":   100.00,
		"procedureCode": "99213",
		"serviceDate":   "2025-03-01T00:00:00Z",
		"patient": map[string]any{
			"age":      45,
			"province": "AB",
		},
		"provider": map[string]any{
			"specialty": "family_medicine",
		},
		"documentsAttached": true,
	}
}

func TestEvaluateLeafOperators(t *testing.T) {
	num := func(s string) Value {
		v, err := NumberFromString(s)
		if err != nil {
			t.Fatalf("NumberFromString(%q) failed: %v", s, err)
		}
		return v
	}

	testCases := []struct {
		name string
		node *Node
		want bool
	}{
		{"equals string", Leaf("procedureCode", OpEq, String("99213")), true},
		{"equals string mismatch", Leaf("procedureCode", OpEq, String("99214")), false},
		{"not equals", Leaf("procedureCode", OpNe, String("99214")), true},
		{"equals number against float", Leaf("totalAmount", OpEq, num("100")), true},
		{"greater than", Leaf("totalAmount", OpGt, num("50")), true},
		{"greater than false", Leaf("totalAmount", OpGt, num("100")), false},
		{"greater or equal boundary", Leaf("totalAmount", OpGe, num("100")), true},
		{"less than nested int", Leaf("patient.age", OpLt, num("65")), true},
		{"less or equal nested", Leaf("patient.age", OpLe, num("45")), true},
		{"in list", Leaf("patient.province", OpIn, StringList("AB", "SK")), true},
		{"in list miss", Leaf("patient.province", OpIn, StringList("ON", "QC")), false},
		{"not_in list", Leaf("patient.province", OpNotIn, StringList("ON", "QC")), true},
		{"in coerces number to string", Leaf("patient.age", OpIn, StringList("45", "46")), true},
		{"contains", Leaf("provider.specialty", OpContains, String("family")), true},
		{"starts_with", Leaf("procedureCode", OpStartsWith, String("992")), true},
		{"starts_with miss", Leaf("procedureCode", OpStartsWith, String("993")), false},
		{"bool equals", Leaf("documentsAttached", OpEq, Bool(true)), true},
		{"date before", Leaf("serviceDate", OpLt, Date(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))), true},
		{"date after false", Leaf("serviceDate", OpGt, Date(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))), false},
	}

	facts := sampleFacts()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, traces := Evaluate(tc.node, facts)
			if got != tc.want {
				t.Errorf("Evaluate() = %v, want %v", got, tc.want)
			}
			if len(traces) != 1 {
				t.Fatalf("expected 1 leaf trace, got %d", len(traces))
			}
			if traces[0].Result != tc.want {
				t.Errorf("trace result = %v, want %v", traces[0].Result, tc.want)
			}
		})
	}
}

func TestEvaluateNumericStringCoercion(t *testing.T) {
	facts := MapFacts{"totalAmount": "100.50"}
	v, _ := NumberFromString("100.5")

	got, traces := Evaluate(Leaf("totalAmount", OpEq, v), facts)
	if !got {
		t.Errorf("numeric-looking string should coerce for numeric comparison, trace: %+v", traces)
	}
}

func TestEvaluateMissingFieldIsFalse(t *testing.T) {
	facts := sampleFacts()
	node := Leaf("referral.number", OpEq, String("R-100"))

	got, traces := Evaluate(node, facts)
	if got {
		t.Error("missing field should evaluate to false")
	}
	if len(traces) != 1 {
		t.Fatalf("expected 1 trace entry, got %d", len(traces))
	}
	if traces[0].Note != NoteMissingField {
		t.Errorf("trace note = %q, want %q", traces[0].Note, NoteMissingField)
	}
}

func TestEvaluateTypeMismatchIsFalse(t *testing.T) {
	facts := MapFacts{"procedureCode": "abc"}
	v, _ := NumberFromString("10")

	got, traces := Evaluate(Leaf("procedureCode", OpGt, v), facts)
	if got {
		t.Error("non-numeric string compared numerically should be false")
	}
	if traces[0].Note != NoteTypeMismatch {
		t.Errorf("trace note = %q, want %q", traces[0].Note, NoteTypeMismatch)
	}
}

func TestEvaluateAndShortCircuits(t *testing.T) {
	facts := sampleFacts()
	node := And(
		Leaf("procedureCode", OpEq, String("nope")),
		Leaf("totalAmount", OpGt, Number(decimal.NewFromInt(1))),
	)

	got, traces := Evaluate(node, facts)
	if got {
		t.Error("AND with a false child should be false")
	}
	// Second leaf must not have been evaluated.
	if len(traces) != 1 {
		t.Errorf("AND should short-circuit after first false child, got %d traces", len(traces))
	}
}

func TestEvaluateOrShortCircuits(t *testing.T) {
	facts := sampleFacts()
	node := Or(
		Leaf("procedureCode", OpEq, String("99213")),
		Leaf("totalAmount", OpGt, Number(decimal.NewFromInt(1))),
	)

	got, traces := Evaluate(node, facts)
	if !got {
		t.Error("OR with a true child should be true")
	}
	if len(traces) != 1 {
		t.Errorf("OR should short-circuit after first true child, got %d traces", len(traces))
	}
}

func TestEvaluateNotNegates(t *testing.T) {
	facts := sampleFacts()

	got, _ := Evaluate(Not(Leaf("procedureCode", OpEq, String("99213"))), facts)
	if got {
		t.Error("NOT of a true leaf should be false")
	}

	got, _ = Evaluate(Not(Leaf("procedureCode", OpEq, String("99999"))), facts)
	if !got {
		t.Error("NOT of a false leaf should be true")
	}
}

func TestEvaluateNestedGroups(t *testing.T) {
	facts := sampleFacts()
	node := And(
		Leaf("patient.province", OpIn, StringList("AB")),
		Or(
			Leaf("totalAmount", OpGt, Number(decimal.NewFromInt(500))),
			Leaf("provider.specialty", OpEq, String("family_medicine")),
		),
		Not(Leaf("patient.age", OpGt, Number(decimal.NewFromInt(100)))),
	)

	got, _ := Evaluate(node, facts)
	if !got {
		t.Error("nested group should evaluate true against sample facts")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	facts := sampleFacts()
	node := And(
		Leaf("totalAmount", OpGe, Number(decimal.NewFromInt(100))),
		Or(
			Leaf("patient.province", OpIn, StringList("AB", "SK")),
			Leaf("procedureCode", OpStartsWith, String("992")),
		),
	)

	firstResult, firstTraces := Evaluate(node, facts)
	for i := 0; i < 50; i++ {
		result, traces := Evaluate(node, facts)
		if result != firstResult {
			t.Fatalf("run %d: result %v differs from first run %v", i, result, firstResult)
		}
		if len(traces) != len(firstTraces) {
			t.Fatalf("run %d: trace length %d differs from first run %d", i, len(traces), len(firstTraces))
		}
		for j := range traces {
			if traces[j] != firstTraces[j] {
				t.Fatalf("run %d: trace[%d] = %+v differs from %+v", i, j, traces[j], firstTraces[j])
			}
		}
	}
}
