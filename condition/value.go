package condition

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind discriminates the closed set of comparison value types.
type ValueKind string

const (
	KindNumber     ValueKind = "number"
	KindString     ValueKind = "string"
	KindBool       ValueKind = "bool"
	KindDate       ValueKind = "date"
	KindStringList ValueKind = "string_list"
)

// Value is the typed right-hand side of a leaf comparison. Exactly one of the
// payload fields is meaningful, selected by Kind. Using a closed union instead
// of a raw `any` keeps every coercion path explicit and auditable.
type Value struct {
	Kind ValueKind

	Num  decimal.Decimal
	Str  string
	Bool bool
	Date time.Time
	List []string
}

func Number(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

// NumberFromString parses a decimal literal. Rule authoring surfaces send
// numbers as strings to avoid float64 round-tripping.
func NumberFromString(s string) (Value, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Value{}, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return Number(d), nil
}

func String(s string) Value          { return Value{Kind: KindString, Str: s} }
func Bool(b bool) Value              { return Value{Kind: KindBool, Bool: b} }
func Date(t time.Time) Value         { return Value{Kind: KindDate, Date: t.UTC()} }
func StringList(ss ...string) Value  { return Value{Kind: KindStringList, List: ss} }

// valueJSON is the wire form: {"type": "...", "value": ...}.
type valueJSON struct {
	Type  ValueKind       `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind {
	case KindNumber:
		payload = v.Num.String()
	case KindString:
		payload = v.Str
	case KindBool:
		payload = v.Bool
	case KindDate:
		payload = v.Date.UTC().Format(time.RFC3339)
	case KindStringList:
		list := v.List
		if list == nil {
			list = []string{}
		}
		payload = list
	default:
		return nil, fmt.Errorf("unknown value kind %q", v.Kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Type: v.Kind, Value: raw})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var wire valueJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch wire.Type {
	case KindNumber:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			// Tolerate bare JSON numbers from older rule payloads.
			var f json.Number
			if err2 := json.Unmarshal(wire.Value, &f); err2 != nil {
				return fmt.Errorf("number value must be a string or number: %w", err)
			}
			s = f.String()
		}
		parsed, err := NumberFromString(s)
		if err != nil {
			return err
		}
		*v = parsed
	case KindString:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return err
		}
		*v = String(s)
	case KindBool:
		var b bool
		if err := json.Unmarshal(wire.Value, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case KindDate:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return err
		}
		t, err := parseDate(s)
		if err != nil {
			return err
		}
		*v = Date(t)
	case KindStringList:
		var ss []string
		if err := json.Unmarshal(wire.Value, &ss); err != nil {
			return err
		}
		*v = StringList(ss...)
	default:
		return fmt.Errorf("unknown value type %q", wire.Type)
	}
	return nil
}

// String renders the value for traces and reason templates.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return v.Num.String()
	case KindString:
		return v.Str
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindDate:
		return v.Date.UTC().Format(time.RFC3339)
	case KindStringList:
		return fmt.Sprintf("%v", v.List)
	}
	return ""
}

// parseDate accepts ISO-8601 timestamps and bare dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 date %q", s)
}
