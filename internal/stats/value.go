// Package stats provides null-aware numeric values and the aggregations,
// regressions and clustering built on them.
package stats

import (
	"math"
	"strconv"
	"strings"
)

// Value is a nullable float64. The zero value is null.
//
// Arithmetic propagates nulls: any operation with a null operand yields null.
// Non-finite results (NaN, ±Inf) are also treated as null.
type Value struct {
	v     float64
	valid bool
}

// Null is the null Value.
var Null = Value{}

// Of wraps a float64. NaN and infinities become null.
func Of(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null
	}
	return Value{v: v, valid: true}
}

// Valid reports whether x holds a number.
func (x Value) Valid() bool { return x.valid }

// Float64 returns the number and whether it is present.
func (x Value) Float64() (float64, bool) { return x.v, x.valid }

// Or returns the number, or def when x is null.
func (x Value) Or(def float64) float64 {
	if !x.valid {
		return def
	}
	return x.v
}

// Ptr returns a pointer to the number, or nil when x is null.
func (x Value) Ptr() *float64 {
	if !x.valid {
		return nil
	}
	v := x.v
	return &v
}

func (x Value) Add(y Value) Value {
	if !x.valid || !y.valid {
		return Null
	}
	return Of(x.v + y.v)
}

func (x Value) Sub(y Value) Value {
	if !x.valid || !y.valid {
		return Null
	}
	return Of(x.v - y.v)
}

func (x Value) Mul(y Value) Value {
	if !x.valid || !y.valid {
		return Null
	}
	return Of(x.v * y.v)
}

// Div divides x by y. Division by zero yields null.
func (x Value) Div(y Value) Value {
	if !x.valid || !y.valid || y.v == 0 {
		return Null
	}
	return Of(x.v / y.v)
}

func (x Value) Neg() Value {
	if !x.valid {
		return Null
	}
	return Value{v: -x.v, valid: true}
}

// Scale multiplies x by a constant.
func (x Value) Scale(k float64) Value {
	if !x.valid {
		return Null
	}
	return Of(x.v * k)
}

// Clip bounds x to [lo, hi].
func (x Value) Clip(lo, hi float64) Value {
	if !x.valid {
		return Null
	}
	return Value{v: math.Min(math.Max(x.v, lo), hi), valid: true}
}

// String formats x with the shortest representation that round-trips.
// Null formats as the empty string.
func (x Value) String() string {
	if !x.valid {
		return ""
	}
	return strconv.FormatFloat(x.v, 'g', -1, 64)
}

// MarshalJSON encodes null as JSON null.
func (x Value) MarshalJSON() ([]byte, error) {
	if !x.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(x.v, 'g', -1, 64)), nil
}

// nullTokens are cell values treated as missing before numeric parsing.
var nullTokens = map[string]bool{
	"":     true,
	"-":    true,
	"--":   true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
}

// Parse coerces a raw cell to a Value. Anything unparsable is null.
func Parse(s string) Value {
	s = strings.TrimSpace(s)
	if nullTokens[strings.ToLower(s)] {
		return Null
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Null
	}
	return Of(v)
}

// ParseYear coerces a raw cell to an integer year. "2020" and "2020.0" are
// accepted; fractional or unparsable values are rejected.
func ParseYear(s string) (int, bool) {
	x := Parse(s)
	v, ok := x.Float64()
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}
