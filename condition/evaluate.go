package condition

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Facts resolves dotted field paths against whatever the condition is being
// evaluated over. claims.Snapshot is the production implementation; tests use
// plain maps via MapFacts.
type Facts interface {
	// Resolve returns the value at path and whether the path exists.
	Resolve(path string) (any, bool)
}

// MapFacts adapts a nested map[string]any to the Facts interface.
type MapFacts map[string]any

func (m MapFacts) Resolve(path string) (any, bool) {
	var cur any = map[string]any(m)
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Trace notes for non-matching leaves. Empty note means the comparison ran
// normally.
const (
	NoteMissingField = "missing_field"
	NoteTypeMismatch = "type_mismatch"
)

// LeafTrace records one leaf comparison for the execution trace: what was
// expected, what the claim actually held, and the boolean result.
type LeafTrace struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Expected string   `json:"expected"`
	Actual   string   `json:"actual"`
	Result   bool     `json:"result"`
	Note     string   `json:"note,omitempty"`
}

// Evaluate walks the condition tree against the supplied facts.
//
// AND short-circuits on the first false child, OR on the first true child and
// NOT negates its single child. A missing field evaluates to false and is
// recorded with the missing_field note; Evaluate never returns an error and
// never panics on well-formed trees. The result is a pure function of
// (node, facts): no clock, no randomness, no mutation of the inputs.
func Evaluate(n *Node, facts Facts) (bool, []LeafTrace) {
	var traces []LeafTrace
	result := eval(n, facts, &traces)
	return result, traces
}

func eval(n *Node, facts Facts, traces *[]LeafTrace) bool {
	if n == nil {
		return false
	}
	if n.IsLeaf() {
		return evalLeaf(n, facts, traces)
	}

	switch n.Op {
	case OpAnd:
		for _, child := range n.Children {
			if !eval(child, facts, traces) {
				return false
			}
		}
		return true
	case OpOr:
		for _, child := range n.Children {
			if eval(child, facts, traces) {
				return true
			}
		}
		return false
	case OpNot:
		if len(n.Children) != 1 {
			return false
		}
		return !eval(n.Children[0], facts, traces)
	}
	return false
}

func evalLeaf(n *Node, facts Facts, traces *[]LeafTrace) bool {
	trace := LeafTrace{
		Field:    n.Field,
		Operator: n.Operator,
		Expected: n.Value.String(),
	}

	actual, ok := facts.Resolve(n.Field)
	if !ok {
		trace.Note = NoteMissingField
		*traces = append(*traces, trace)
		return false
	}
	trace.Actual = renderActual(actual)

	result, note := compare(n.Operator, actual, *n.Value)
	trace.Result = result
	trace.Note = note
	*traces = append(*traces, trace)
	return result
}

// compare applies one operator with the coercion rules of the engine: numeric
// operators coerce numeric-looking strings, date values parse ISO-8601
// strings, in/not_in match against string lists, contains/starts_with operate
// on strings. A value that cannot be coerced makes the leaf false with a
// type_mismatch note rather than failing the run.
func compare(op Operator, actual any, expected Value) (bool, string) {
	switch op {
	case OpEq, OpNe:
		eq, note := equals(actual, expected)
		if note != "" {
			return false, note
		}
		if op == OpNe {
			return !eq, ""
		}
		return eq, ""

	case OpGt, OpLt, OpGe, OpLe:
		cmp, note := order(actual, expected)
		if note != "" {
			return false, note
		}
		switch op {
		case OpGt:
			return cmp > 0, ""
		case OpLt:
			return cmp < 0, ""
		case OpGe:
			return cmp >= 0, ""
		default:
			return cmp <= 0, ""
		}

	case OpIn, OpNotIn:
		if expected.Kind != KindStringList {
			return false, NoteTypeMismatch
		}
		s, ok := asString(actual)
		if !ok {
			return false, NoteTypeMismatch
		}
		found := false
		for _, candidate := range expected.List {
			if candidate == s {
				found = true
				break
			}
		}
		if op == OpNotIn {
			return !found, ""
		}
		return found, ""

	case OpContains:
		s, ok := actual.(string)
		if !ok || expected.Kind != KindString {
			return false, NoteTypeMismatch
		}
		return strings.Contains(s, expected.Str), ""

	case OpStartsWith:
		s, ok := actual.(string)
		if !ok || expected.Kind != KindString {
			return false, NoteTypeMismatch
		}
		return strings.HasPrefix(s, expected.Str), ""
	}
	return false, NoteTypeMismatch
}

func equals(actual any, expected Value) (bool, string) {
	switch expected.Kind {
	case KindNumber:
		d, ok := asDecimal(actual)
		if !ok {
			return false, NoteTypeMismatch
		}
		return d.Equal(expected.Num), ""
	case KindString:
		s, ok := actual.(string)
		if !ok {
			return false, NoteTypeMismatch
		}
		return s == expected.Str, ""
	case KindBool:
		b, ok := actual.(bool)
		if !ok {
			return false, NoteTypeMismatch
		}
		return b == expected.Bool, ""
	case KindDate:
		t, ok := asTime(actual)
		if !ok {
			return false, NoteTypeMismatch
		}
		return t.Equal(expected.Date), ""
	}
	return false, NoteTypeMismatch
}

// order returns -1/0/+1 for actual relative to expected.
func order(actual any, expected Value) (int, string) {
	switch expected.Kind {
	case KindNumber:
		d, ok := asDecimal(actual)
		if !ok {
			return 0, NoteTypeMismatch
		}
		return d.Cmp(expected.Num), ""
	case KindDate:
		t, ok := asTime(actual)
		if !ok {
			return 0, NoteTypeMismatch
		}
		if t.Before(expected.Date) {
			return -1, ""
		}
		if t.After(expected.Date) {
			return 1, ""
		}
		return 0, ""
	}
	return 0, NoteTypeMismatch
}

// asDecimal coerces the value shapes that appear in claim snapshots after JSON
// decoding: numbers, numeric strings and decimals.
func asDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case float64:
		return decimal.NewFromFloat(x), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	}
	return decimal.Decimal{}, false
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), true
	case string:
		t, err := parseDate(x)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int:
		return fmt.Sprintf("%d", x), true
	case int64:
		return fmt.Sprintf("%d", x), true
	case float64:
		return decimal.NewFromFloat(x).String(), true
	case decimal.Decimal:
		return x.String(), true
	}
	return "", false
}

func renderActual(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case float64:
		return decimal.NewFromFloat(x).String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
