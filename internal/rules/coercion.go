// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"reflect"
)

/*
 * Value normalization for rule evaluation.
 *
 * Context values arrive from JSON (float64, json.Number), YAML (int),
 * structpb (float64) or Go callers (any numeric kind). Operators compare
 * numbers by value regardless of the Go kind that carried them, so 1 and
 * 1.0 are equal and "1" is not a number.
 *
 * Strict typing otherwise: strings never coerce to numbers or booleans,
 * booleans never coerce to numbers. This mirrors strict equality semantics.
 */

// toFloat64 converts value to float64 if it is a numeric type.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// asNumbers attempts to convert both values to float64.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toList converts list-shaped values to []any.
// Accepts []any directly and any other slice or array kind via reflection.
// Strings and byte slices are not lists.
func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case nil, string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// hashKey returns a comparable key for scalar values so membership sets can
// use a Go map. Numbers normalize to float64. Returns false for lists, maps
// and other non-comparable values.
func hashKey(v any) (any, bool) {
	if f, ok := toFloat64(v); ok {
		return f, true
	}
	switch s := v.(type) {
	case nil:
		return nil, true
	case string, bool:
		return s, true
	default:
		return nil, false
	}
}

// valuesEqual performs strict equality with numeric normalization.
// Lists and maps compare structurally.
func valuesEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	if la, ok := toList(a); ok {
		lb, ok := toList(b)
		if !ok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !valuesEqual(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	ka, oka := hashKey(a)
	kb, okb := hashKey(b)
	if oka && okb {
		return ka == kb
	}
	return reflect.DeepEqual(a, b)
}
