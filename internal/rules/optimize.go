// internal/rules/optimize.go
package rules

import (
	"fmt"
	"sort"

	"github.com/solatis/overseer/internal/types"
)

/*
 * Condition list optimization.
 *
 * A pure rewrite of a condition list, in fixed order:
 *   1. Redundancy removal: exact duplicates; equals on F when an in on F
 *      already lists the value
 *   2. Equals->in combination: >=2 equals on F (non-bool, non-null scalar
 *      values) become one in, values in first-seen order
 *   3. Simplification: single-element in -> equals, not_in -> not_equals
 *   4. Short-circuit reordering: stable sort ascending by ConditionCost
 *
 * Steps 1-3 repeat until nothing changes, then step 4 runs once. Running to
 * a fixed point is what makes the rewrite idempotent: a step-3 equals that
 * step 1 could drop on a second pass is dropped on the first.
 *
 * Steps 1b and 2 merge alternatives: F==a, F==b and F in [a,b] all accept
 * the same values only when the list is read disjunctively. OptimizeRule
 * therefore applies them to "any" rules only; OptimizeConditions applies
 * them unconditionally.
 */

// ChangeKind names one rewrite applied by the optimizer.
type ChangeKind string

const (
	ChangeRemovedDuplicate ChangeKind = "removed_duplicate"
	ChangeRemovedRedundant ChangeKind = "removed_redundant_equals"
	ChangeCombinedEquals   ChangeKind = "combined_equals"
	ChangeSimplifiedIn     ChangeKind = "simplified_in"
	ChangeSimplifiedNotIn  ChangeKind = "simplified_not_in"
	ChangeReordered        ChangeKind = "reordered"
)

// maxOptimizePasses bounds the fixed-point loop. Each pass either shrinks
// the list or converts single-element lists, so real inputs settle in a few.
const maxOptimizePasses = 16

// Change describes one rewrite.
type Change struct {
	Kind        ChangeKind `json:"kind"`
	Field       string     `json:"field,omitempty"`
	Description string     `json:"description"`
}

// OptimizationResult reports what the optimizer did.
type OptimizationResult struct {
	Original     []types.Condition `json:"original"`
	Optimized    []types.Condition `json:"optimized"`
	WasOptimized bool              `json:"wasOptimized"`
	Changes      []Change          `json:"changes"`
	CostBefore   int               `json:"costBefore"`
	CostAfter    int               `json:"costAfter"`
}

// OptimizeConditions rewrites conds into an equivalent, cheaper form.
// Value merging (steps 1b and 2) is always applied; see OptimizeRule for
// logic-aware rewriting.
func OptimizeConditions(conds []types.Condition) OptimizationResult {
	return optimize(conds, true)
}

// OptimizeRule optimizes rule's condition list and returns the rewritten
// rule. Value merging is applied only to rules with "any" logic.
func OptimizeRule(rule types.Rule) (types.Rule, OptimizationResult) {
	res := optimize(rule.Conditions, rule.EffectiveLogic() == types.LogicAny)
	out := cloneRule(rule)
	out.Conditions = append([]types.Condition(nil), res.Optimized...)
	return out, res
}

func optimize(conds []types.Condition, mergeValues bool) OptimizationResult {
	res := OptimizationResult{
		Original:   append([]types.Condition{}, conds...),
		Changes:    []Change{},
		CostBefore: PositionalCost(conds),
	}

	current := append([]types.Condition{}, conds...)
	for pass := 0; pass < maxOptimizePasses; pass++ {
		var changes []Change
		current, changes = removeRedundant(current, mergeValues, changes)
		if mergeValues {
			current, changes = combineEquals(current, changes)
		}
		current, changes = simplify(current, changes)
		if len(changes) == 0 {
			break
		}
		res.Changes = append(res.Changes, changes...)
	}

	current, res.Changes = reorder(current, res.Changes)

	res.Optimized = current
	res.WasOptimized = len(res.Changes) > 0
	res.CostAfter = PositionalCost(current)
	return res
}

// PositionalCost estimates short-circuit cost: each condition's cost
// weighted by the number of conditions from its position to the end, so
// expensive conditions placed early weigh more.
func PositionalCost(conds []types.Condition) int {
	total := 0
	for i, c := range conds {
		total += ConditionCost(c) * (len(conds) - i)
	}
	return total
}

// removeRedundant drops exact duplicates and, when mergeValues is set,
// equals conditions already covered by an in on the same field.
func removeRedundant(conds []types.Condition, mergeValues bool, changes []Change) ([]types.Condition, []Change) {
	out := make([]types.Condition, 0, len(conds))
	for _, c := range conds {
		dup := false
		for _, kept := range out {
			if conditionsEqual(c, kept) {
				dup = true
				break
			}
		}
		if dup {
			changes = append(changes, Change{
				Kind:        ChangeRemovedDuplicate,
				Field:       c.Field,
				Description: fmt.Sprintf("removed duplicate %s condition on %q", c.Operator, c.Field),
			})
			continue
		}
		out = append(out, c)
	}

	if !mergeValues {
		return out, changes
	}

	filtered := out[:0:0]
	for _, c := range out {
		if c.Operator == types.OpEquals && coveredByIn(c, out) {
			changes = append(changes, Change{
				Kind:        ChangeRemovedRedundant,
				Field:       c.Field,
				Description: fmt.Sprintf("removed equals on %q already listed by an in condition", c.Field),
			})
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered, changes
}

// coveredByIn reports whether an in condition on eq.Field lists eq.Value.
func coveredByIn(eq types.Condition, conds []types.Condition) bool {
	for _, c := range conds {
		if c.Operator != types.OpIn || c.Field != eq.Field {
			continue
		}
		list, ok := toList(c.Value)
		if !ok {
			continue
		}
		for _, v := range list {
			if valuesEqual(v, eq.Value) {
				return true
			}
		}
	}
	return false
}

// combineEquals merges >=2 equals on one field into a single in, placed at
// the position of the first.
func combineEquals(conds []types.Condition, changes []Change) ([]types.Condition, []Change) {
	counts := make(map[string]int)
	for _, c := range conds {
		if mergeableEquals(c) {
			counts[c.Field]++
		}
	}

	merged := make(map[string]int) // field -> index in out
	out := make([]types.Condition, 0, len(conds))
	for _, c := range conds {
		if !mergeableEquals(c) || counts[c.Field] < 2 {
			out = append(out, c)
			continue
		}
		if idx, ok := merged[c.Field]; ok {
			out[idx].Value = append(out[idx].Value.([]any), c.Value)
			continue
		}
		merged[c.Field] = len(out)
		out = append(out, types.Condition{
			Field:    c.Field,
			Operator: types.OpIn,
			Value:    []any{c.Value},
		})
	}

	fields := make([]string, 0, len(merged))
	for f := range merged {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		changes = append(changes, Change{
			Kind:        ChangeCombinedEquals,
			Field:       f,
			Description: fmt.Sprintf("combined %d equals conditions on %q into one in condition", counts[f], f),
		})
	}
	return out, changes
}

// mergeableEquals excludes booleans, nulls and structured values.
func mergeableEquals(c types.Condition) bool {
	if c.Operator != types.OpEquals {
		return false
	}
	switch c.Value.(type) {
	case nil, bool:
		return false
	case string:
		return true
	}
	_, ok := toFloat64(c.Value)
	return ok
}

// simplify rewrites single-element in/not_in lists.
func simplify(conds []types.Condition, changes []Change) ([]types.Condition, []Change) {
	out := make([]types.Condition, len(conds))
	for i, c := range conds {
		out[i] = c
		if c.Operator != types.OpIn && c.Operator != types.OpNotIn {
			continue
		}
		list, ok := toList(c.Value)
		if !ok || len(list) != 1 {
			continue
		}
		if c.Operator == types.OpIn {
			out[i] = types.Condition{Field: c.Field, Operator: types.OpEquals, Value: list[0]}
			changes = append(changes, Change{
				Kind:        ChangeSimplifiedIn,
				Field:       c.Field,
				Description: fmt.Sprintf("rewrote single-value in on %q as equals", c.Field),
			})
		} else {
			out[i] = types.Condition{Field: c.Field, Operator: types.OpNotEquals, Value: list[0]}
			changes = append(changes, Change{
				Kind:        ChangeSimplifiedNotIn,
				Field:       c.Field,
				Description: fmt.Sprintf("rewrote single-value not_in on %q as not_equals", c.Field),
			})
		}
	}
	return out, changes
}

// reorder sorts conditions cheapest first. Stable: equal-cost conditions
// keep their authored order.
func reorder(conds []types.Condition, changes []Change) ([]types.Condition, []Change) {
	sorted := append([]types.Condition{}, conds...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ConditionCost(sorted[i]) < ConditionCost(sorted[j])
	})
	for i := range sorted {
		if !conditionsEqual(sorted[i], conds[i]) {
			changes = append(changes, Change{
				Kind:        ChangeReordered,
				Description: "reordered conditions by ascending evaluation cost",
			})
			break
		}
	}
	return sorted, changes
}

// conditionsEqual compares field, operator, evaluator and value.
func conditionsEqual(a, b types.Condition) bool {
	return a.Field == b.Field &&
		a.Operator == b.Operator &&
		a.Evaluator == b.Evaluator &&
		valuesEqual(a.Value, b.Value)
}
