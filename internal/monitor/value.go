package monitor

import (
	"encoding/json"
	"fmt"
)

type ValueKind int

const (
	Numerical ValueKind = iota + 1
	Fractional
	Conditional
)

func (k ValueKind) String() string {
	switch k {
	case Numerical:
		return "numerical"
	case Fractional:
		return "fractional"
	case Conditional:
		return "conditional"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

func parseValueKind(s string) (ValueKind, error) {
	switch s {
	case "numerical":
		return Numerical, nil
	case "fractional":
		return Fractional, nil
	case "conditional":
		return Conditional, nil
	default:
		return 0, fmt.Errorf("unknown value kind %q", s)
	}
}

// MonitoredValue is a tagged union: exactly one of the payload fields is
// meaningful, selected by Kind. Use the constructors, never a literal.
type MonitoredValue struct {
	kind        ValueKind
	numerical   int64
	fractional  float32
	conditional bool
}

func NumericalValue(v int64) MonitoredValue {
	return MonitoredValue{kind: Numerical, numerical: v}
}

func FractionalValue(v float32) MonitoredValue {
	return MonitoredValue{kind: Fractional, fractional: v}
}

func ConditionalValue(v bool) MonitoredValue {
	return MonitoredValue{kind: Conditional, conditional: v}
}

func (v MonitoredValue) Kind() ValueKind { return v.kind }

func (v MonitoredValue) IsZero() bool { return v.kind == 0 }

// Numerical panics if v holds another variant.
func (v MonitoredValue) Numerical() int64 {
	v.mustBe(Numerical)
	return v.numerical
}

// Fractional panics if v holds another variant.
func (v MonitoredValue) Fractional() float32 {
	v.mustBe(Fractional)
	return v.fractional
}

// Conditional panics if v holds another variant.
func (v MonitoredValue) Conditional() bool {
	v.mustBe(Conditional)
	return v.conditional
}

func (v MonitoredValue) mustBe(k ValueKind) {
	if v.kind != k {
		panic(fmt.Sprintf("monitor: %s value used as %s", v.kind, k))
	}
}

// Compare returns -1, 0 or 1. For conditional values false sorts before true.
// Comparing different variants is a programming error and panics.
func Compare(a, b MonitoredValue) int {
	if a.kind != b.kind {
		panic(fmt.Sprintf("monitor: cannot compare %s with %s", a.kind, b.kind))
	}
	switch a.kind {
	case Numerical:
		return cmp3(a.numerical < b.numerical, a.numerical > b.numerical)
	case Fractional:
		return cmp3(a.fractional < b.fractional, a.fractional > b.fractional)
	case Conditional:
		return cmp3(!a.conditional && b.conditional, a.conditional && !b.conditional)
	default:
		panic("monitor: compare on empty value")
	}
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	default:
		return 0
	}
}

func (v MonitoredValue) String() string {
	switch v.kind {
	case Numerical:
		return fmt.Sprintf("%d", v.numerical)
	case Fractional:
		return fmt.Sprintf("%g", v.fractional)
	case Conditional:
		return fmt.Sprintf("%t", v.conditional)
	default:
		return "<empty>"
	}
}

type valueJSON struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v MonitoredValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case Numerical:
		payload = v.numerical
	case Fractional:
		payload = v.fractional
	case Conditional:
		payload = v.conditional
	default:
		return []byte("null"), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Type: v.kind.String(), Value: raw})
}

func (v *MonitoredValue) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = MonitoredValue{}
		return nil
	}
	var in valueJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	kind, err := parseValueKind(in.Type)
	if err != nil {
		return err
	}
	switch kind {
	case Numerical:
		var n int64
		if err := json.Unmarshal(in.Value, &n); err != nil {
			return fmt.Errorf("numerical value: %w", err)
		}
		*v = NumericalValue(n)
	case Fractional:
		var f float32
		if err := json.Unmarshal(in.Value, &f); err != nil {
			return fmt.Errorf("fractional value: %w", err)
		}
		*v = FractionalValue(f)
	case Conditional:
		var c bool
		if err := json.Unmarshal(in.Value, &c); err != nil {
			return fmt.Errorf("conditional value: %w", err)
		}
		*v = ConditionalValue(c)
	}
	return nil
}
