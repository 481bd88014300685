package monitor

import (
	"math"
)

// Projection helpers turn raw telemetry into MonitoredValues.

func Bytes(v uint64) MonitoredValue {
	if v > math.MaxInt64 {
		return NumericalValue(math.MaxInt64)
	}
	return NumericalValue(int64(v))
}

func Percent(v float64) MonitoredValue { return FractionalValue(float32(v)) }

func Flag(v bool) MonitoredValue { return ConditionalValue(v) }

// Celsius truncates towards zero like an int conversion of the reading.
func Celsius(v float64) MonitoredValue {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NumericalValue(-1)
	}
	return NumericalValue(int64(v))
}

func StringPtr(s string) *string { return &s }

// OptionalString returns nil for "" so absent descriptions stay absent.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
