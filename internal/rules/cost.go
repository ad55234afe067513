// internal/rules/cost.go
package rules

import (
	"strings"
	"unicode"

	"github.com/solatis/overseer/internal/types"
)

/*
 * Cost model for condition evaluation.
 *
 * Defines cost constants and ConditionCost for short-circuit ordering.
 *
 * Cost formula: field_cost + operator_cost
 *
 * Field cost estimates how expensive the value is to obtain: simple fields
 * that are always present cost 1, boolean-style flags cost 1, unknown
 * fields sit mid-range, and fields whose names suggest counting or
 * computation ("count", "size", "length", "total") cost most. Each nested
 * segment past the first adds CostLookupPerSegment, capped.
 *
 * Operator cost estimates evaluation expense: equality and presence checks
 * are cheapest, regex and custom evaluators most expensive. Operator costs
 * are spaced so that no field cost can move an equals or exists check
 * behind a regex or custom check.
 */

const (
	// Operator base costs
	CostExists   = 1
	CostEquals   = 1
	CostIn       = 3
	CostCompare  = 3
	CostContains = 5
	CostRegex    = 20
	CostCustom   = 25

	// Field base costs
	FieldCostSimple   = 1
	FieldCostBoolean  = 1
	FieldCostDefault  = 5
	FieldCostPattern  = 7
	FieldCostComputed = 10

	// Field lookup cost per nested segment beyond the first
	CostLookupPerSegment = 1
	maxLookupCost        = 3
)

// simpleFields are always present on a proposed action or its context.
var simpleFields = map[string]bool{
	"id": true, "type": true, "tool": true, "name": true, "kind": true,
	"env": true, "environment": true, "agent": true, "user": true,
	"role": true, "category": true, "status": true, "target": true,
	"method": true, "action": true,
}

var computedMarkers = []string{"count", "size", "length", "total", "sum"}
var patternMarkers = []string{"regex", "pattern"}
var booleanPrefixes = []string{"is_", "has_", "can_", "should_", "allow_", "enable_"}

// ConditionCost computes cost for a single condition.
func ConditionCost(cond types.Condition) int {
	return FieldCost(cond.Field) + OperatorCost(cond.Operator)
}

// OperatorCost returns base cost for operator execution.
func OperatorCost(op types.Operator) int {
	switch op {
	case types.OpExists, types.OpNotExists:
		return CostExists
	case types.OpEquals, types.OpNotEquals:
		return CostEquals
	case types.OpIn, types.OpNotIn:
		return CostIn
	case types.OpGreaterThan, types.OpLessThan:
		return CostCompare
	case types.OpContains, types.OpNotContains:
		return CostContains
	case types.OpMatchesRegex:
		return CostRegex
	case types.OpCustom:
		return CostCustom
	default:
		return CostContains
	}
}

// FieldCost estimates the cost of obtaining a field's value from its name.
func FieldCost(field string) int {
	segments := strings.Split(field, ".")
	last := segments[len(segments)-1]
	lower := strings.ToLower(last)

	lookup := (len(segments) - 1) * CostLookupPerSegment
	if lookup > maxLookupCost {
		lookup = maxLookupCost
	}

	switch {
	case containsAny(lower, computedMarkers):
		return FieldCostComputed + lookup
	case containsAny(lower, patternMarkers):
		return FieldCostPattern + lookup
	case isBooleanName(last):
		return FieldCostBoolean + lookup
	case simpleFields[lower]:
		return FieldCostSimple + lookup
	default:
		return FieldCostDefault + lookup
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// isBooleanName matches snake_case flag prefixes (is_admin) and camelCase
// ones (isAdmin, hasAccess).
func isBooleanName(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range booleanPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	for _, p := range []string{"is", "has", "can"} {
		if len(name) > len(p) && strings.HasPrefix(name, p) && unicode.IsUpper(rune(name[len(p)])) {
			return true
		}
	}
	return false
}
