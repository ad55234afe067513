// internal/rules/operators.go
package rules

import (
	"strings"
)

/*
 * Operator comparison logic.
 *
 * Pure comparison functions for the stateless operators. The evaluator
 * owns the three operators that need caches (in/not_in membership sets,
 * matches_regex compiled patterns, custom evaluator lookups) and delegates
 * everything else here.
 *
 * Operators:
 *   - exists/not_exists: Present and non-null / absent or null
 *   - equals/not_equals: Strict equality, numbers compared by value
 *   - contains/not_contains: Substring for strings, membership for lists
 *   - greater_than/less_than: Numeric only, false for non-numbers
 *
 * Absent fields: every comparison against an absent field is false except
 * the negated forms (not_equals, not_contains, not_exists), which are true.
 */

// compareExists reports whether the field is present and non-null.
func compareExists(value any, found bool) bool {
	return found && value != nil
}

// compareEqual performs strict equality. Absent never equals anything.
func compareEqual(value any, found bool, target any) bool {
	if !found {
		return false
	}
	return valuesEqual(value, target)
}

// compareContains tests substring when both sides are strings and
// membership when the field is a list. Anything else is false.
func compareContains(value any, found bool, target any) bool {
	if !found {
		return false
	}
	if vs, ok := value.(string); ok {
		ts, ok := target.(string)
		if !ok {
			return false
		}
		return strings.Contains(vs, ts)
	}
	if list, ok := toList(value); ok {
		for _, elem := range list {
			if valuesEqual(elem, target) {
				return true
			}
		}
	}
	return false
}

// compareGreater is true when both sides are numeric and value > target.
func compareGreater(value any, found bool, target any) bool {
	if !found {
		return false
	}
	a, b, ok := asNumbers(value, target)
	return ok && a > b
}

// compareLess is true when both sides are numeric and value < target.
func compareLess(value any, found bool, target any) bool {
	if !found {
		return false
	}
	a, b, ok := asNumbers(value, target)
	return ok && a < b
}
