package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface for scalar bundle values: variable defaults,
// action operands, condition operands and override values.
// Only String, Number and Bool implement it. An absent variable is
// represented by a nil Value (the "undefined" of the bundle format).
type Value interface {
	value() // Sealed

	// String renders the value the way it appears inside generated text.
	String() string
}

// String is a text value.
type String string

func (String) value() {}

func (s String) String() string { return string(s) }

// Number is a numeric value. Bundle authors write integers and decimals
// interchangeably, so a single float64 representation is used.
type Number float64

func (Number) value() {}

// String formats integral numbers without a fractional part and everything
// else with the shortest round-tripping representation.
func (n Number) String() string {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// ValueOf converts a decoded document scalar into a Value.
// Returns false for nil, objects, arrays and unsupported types.
func ValueOf(v any) (Value, bool) {
	switch val := v.(type) {
	case Value:
		return val, val != nil
	case string:
		return String(val), true
	case bool:
		return Bool(val), true
	case float64:
		return Number(val), true
	case float32:
		return Number(val), true
	case int:
		return Number(val), true
	case int64:
		return Number(val), true
	case int32:
		return Number(val), true
	case uint64:
		return Number(val), true
	default:
		return nil, false
	}
}

// ToNumber applies numeric coercion: numbers as-is, booleans as 0/1,
// strings parsed after trimming (the empty string is 0). A nil Value and
// unparseable strings yield NaN.
func ToNumber(v Value) float64 {
	switch val := v.(type) {
	case Number:
		return float64(val)
	case Bool:
		if val {
			return 1
		}
		return 0
	case String:
		s := strings.TrimSpace(string(val))
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// Equal reports strict equality: same kind and same value.
// A nil Value equals nothing, not even another nil Value.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return false
	}
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	}
	return false
}

// Compare orders a against b for the relational operators.
// Two strings compare lexically; every other pairing compares numerically
// after coercion. ok is false when the pair is unordered (a nil operand or
// a NaN after coercion), in which case every relational test fails.
func Compare(a, b Value) (cmp int, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if as, isStr := a.(String); isStr {
		if bs, isStr := b.(String); isStr {
			return strings.Compare(string(as), string(bs)), true
		}
	}
	af, bf := ToNumber(a), ToNumber(b)
	if math.IsNaN(af) || math.IsNaN(bf) {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

// Format renders an arbitrary document scalar for error messages.
func Format(v any) string {
	if val, ok := ValueOf(v); ok {
		return val.String()
	}
	return fmt.Sprintf("%v", v)
}
