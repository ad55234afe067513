// internal/rules/fieldpath.go
package rules

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/solatis/overseer/internal/types"
)

/*
 * Field path resolution for evaluation contexts.
 *
 * Resolves dot-separated paths ("action.params.path") through nested maps
 * and lists. Numeric segments index into lists; against a map they are
 * looked up as ordinary keys. A missing intermediate key is not an error:
 * the result reports Found=false, which operators treat as "absent".
 *
 * Key functions:
 *   - ParsePath: Tokenizes a field string into PathSegments
 *   - Resolve: Walks parsed segments through the context
 *   - Lookup: ParsePath + Resolve in one call
 *
 * Traversal is iterative. Paths are bounded by types.MaxPathDepth at parse
 * time so a hostile rule cannot force unbounded walks.
 */

// PathSegment represents one component of a field path.
type PathSegment struct {
	Key     string // raw segment text, used for map lookups
	Index   int    // list index when IsIndex is set
	IsIndex bool   // segment parses as a non-negative integer
}

// ResolveResult contains the resolved value.
type ResolveResult struct {
	Value any  // resolved value (nil if not found or explicit null)
	Found bool // false when any segment along the path was absent
}

// ParsePath splits a dot-separated field into segments.
// Returns ErrPathTooDeep if the path exceeds MaxPathDepth.
// An empty field resolves to the context root.
func ParsePath(field string) ([]PathSegment, error) {
	if field == "" {
		return nil, nil
	}
	parts := strings.Split(field, ".")
	if len(parts) > types.MaxPathDepth {
		return nil, types.ErrPathTooDeep
	}
	segs := make([]PathSegment, len(parts))
	for i, p := range parts {
		segs[i] = PathSegment{Key: p}
		if n, err := strconv.Atoi(p); err == nil && n >= 0 {
			segs[i].Index = n
			segs[i].IsIndex = true
		}
	}
	return segs, nil
}

// Resolve traverses data following path segments.
func Resolve(path []PathSegment, data any) ResolveResult {
	current := data
	for _, seg := range path {
		next, ok := step(current, seg)
		if !ok {
			return ResolveResult{}
		}
		current = next
	}
	return ResolveResult{Value: current, Found: true}
}

// Lookup resolves a dot-separated field against data.
// Malformed paths resolve as not found.
func Lookup(data any, field string) ResolveResult {
	path, err := ParsePath(field)
	if err != nil {
		return ResolveResult{}
	}
	return Resolve(path, data)
}

// step descends one segment. Returns false when the segment is absent or
// the current value cannot be descended into.
func step(current any, seg PathSegment) (any, bool) {
	switch v := current.(type) {
	case types.Context:
		val, ok := v[seg.Key]
		return val, ok
	case map[string]any:
		val, ok := v[seg.Key]
		return val, ok
	case map[string]string:
		val, ok := v[seg.Key]
		return val, ok
	case []any:
		if !seg.IsIndex || seg.Index >= len(v) {
			return nil, false
		}
		return v[seg.Index], true
	case nil:
		// Null value at intermediate position
		return nil, false
	}

	// Typed slices and string-keyed maps from callers that did not build
	// map[string]any contexts.
	rv := reflect.ValueOf(current)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if !seg.IsIndex || seg.Index >= rv.Len() {
			return nil, false
		}
		return rv.Index(seg.Index).Interface(), true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		val := rv.MapIndex(reflect.ValueOf(seg.Key).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true
	default:
		// Scalar value but path continues
		return nil, false
	}
}
