package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface for runtime and literal values.
// Only Unit, Str, Int, Bool, List and Rec implement it.
// NO float type - floats break deterministic hashing and replay.
type Value interface {
	seamValue() // Sealed - only these types implement it
}

// Unit is the result of expressions evaluated for effect only.
type Unit struct{}

// Str is a string value. NFC-normalized at the canonical JSON boundary.
type Str string

// Int is an integer value. Always int64, never float64.
type Int int64

// Bool is a boolean value.
type Bool bool

// List is an ordered sequence of values.
type List []Value

// Rec is a record of named values. Use SortedKeys for deterministic
// iteration.
type Rec map[string]Value

func (Unit) seamValue() {}
func (Str) seamValue()  {}
func (Int) seamValue()  {}
func (Bool) seamValue() {}
func (List) seamValue() {}
func (Rec) seamValue()  {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for non-BMP keys.
func (r Rec) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required by
// RFC 8785. utf16.Encode handles surrogate pairs correctly.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// FromGo converts a plain Go value (as decoded from YAML or CUE) into a
// Value. Floats and nils are rejected.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a Seam value")
	case Value:
		return val, nil
	case string:
		return Str(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are not Seam values: %v", val)
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			sv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = sv
		}
		return list, nil
	case map[string]any:
		rec := make(Rec, len(val))
		for k, elem := range val {
			sv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			rec[k] = sv
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// TypeName returns the Seam type name of a value, as used in signatures.
func TypeName(v Value) string {
	switch v.(type) {
	case Unit:
		return "Unit"
	case Str:
		return "Str"
	case Int:
		return "Int"
	case Bool:
		return "Bool"
	case List:
		return "List"
	case Rec:
		return "Rec"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Format renders a value for human-readable output (traces, CLI).
// Not canonical - use MarshalCanonical for identity computation.
func Format(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case Unit:
		return "unit"
	case Str:
		return strconv.Quote(string(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	case List:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Rec:
		parts := make([]string, 0, len(val))
		for _, k := range val.SortedKeys() {
			parts = append(parts, k+": "+Format(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Equal reports deep structural equality between two values.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Unit:
		_, ok := b.(Unit)
		return ok
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Rec:
		bv, ok := b.(Rec)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !Equal(v, bvv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
