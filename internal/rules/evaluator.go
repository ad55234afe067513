// internal/rules/evaluator.go
package rules

import (
	"fmt"
	"log/slog"

	"github.com/solatis/overseer/internal/types"
)

/*
 * Condition evaluation.
 *
 * Evaluator turns one condition plus an evaluation context into a boolean.
 * It is total: every internal failure (malformed pattern, non-list value
 * for in/not_in, unknown operator, unregistered or failing custom
 * evaluator) yields false, so one broken condition cannot abort the
 * decision for an action.
 *
 * Evaluation flow per condition:
 *   1. Resolve field path (missing is a result, not an error)
 *   2. Dispatch on operator
 *   3. Cached operators consult the store-owned Caches
 *
 * Rule matching: an empty condition list always matches (vacuous truth)
 * under both logics. Otherwise "all" stops at the first false condition
 * and "any" at the first true one, in the order the rule lists them. The
 * engine never reorders conditions itself; OptimizeConditions does that at
 * authoring time, so order is what decides effective short-circuit cost.
 */

// Evaluator evaluates conditions against a context.
// Safe for concurrent use.
type Evaluator struct {
	caches   *Caches
	registry *Registry
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator backed by caches and registry.
func NewEvaluator(caches *Caches, registry *Registry, logger *slog.Logger) *Evaluator {
	if caches == nil {
		caches = NewCaches()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		caches:   caches,
		registry: registry,
		logger:   logger.With("component", "rules.evaluator"),
	}
}

// Evaluate checks a single condition. Never panics, never errors.
func (e *Evaluator) Evaluate(cond types.Condition, data types.Context) bool {
	return e.evaluate("", cond, data)
}

// Matches reports whether rule's conditions hold for data.
func (e *Evaluator) Matches(rule *types.Rule, data types.Context) bool {
	if len(rule.Conditions) == 0 {
		return true
	}
	if rule.EffectiveLogic() == types.LogicAny {
		for _, cond := range rule.Conditions {
			if e.evaluate(rule.ID, cond, data) {
				return true
			}
		}
		return false
	}
	for _, cond := range rule.Conditions {
		if !e.evaluate(rule.ID, cond, data) {
			return false
		}
	}
	return true
}

// evaluate dispatches on operator. ruleID is used for log attribution only.
func (e *Evaluator) evaluate(ruleID types.RuleID, cond types.Condition, data types.Context) bool {
	if cond.Operator == types.OpCustom {
		return e.evaluateCustom(ruleID, cond, data)
	}

	resolved := Lookup(data, cond.Field)
	value, found := resolved.Value, resolved.Found

	switch cond.Operator {
	case types.OpEquals:
		return compareEqual(value, found, cond.Value)
	case types.OpNotEquals:
		return !compareEqual(value, found, cond.Value)
	case types.OpContains:
		return compareContains(value, found, cond.Value)
	case types.OpNotContains:
		return !compareContains(value, found, cond.Value)
	case types.OpGreaterThan:
		return compareGreater(value, found, cond.Value)
	case types.OpLessThan:
		return compareLess(value, found, cond.Value)
	case types.OpExists:
		return compareExists(value, found)
	case types.OpNotExists:
		return !compareExists(value, found)
	case types.OpIn:
		return e.evaluateIn(cond, value, found, false)
	case types.OpNotIn:
		return e.evaluateIn(cond, value, found, true)
	case types.OpMatchesRegex:
		return e.evaluateRegex(ruleID, cond, value, found)
	default:
		e.logger.Debug("unknown operator, treating as non-match",
			"rule_id", ruleID,
			"field", cond.Field,
			"operator", cond.Operator,
		)
		return false
	}
}

// evaluateIn tests membership of the field value in the condition's list.
// A non-list condition value is malformed and never matches, for either
// polarity. An absent field is never "in" a list.
func (e *Evaluator) evaluateIn(cond types.Condition, value any, found, negate bool) bool {
	list, ok := toList(cond.Value)
	if !ok {
		return false
	}
	if !found {
		return negate
	}
	member := e.caches.membership(cond.Field, list).contains(value)
	if negate {
		return !member
	}
	return member
}

// evaluateRegex tests the field string against the cached compiled pattern.
func (e *Evaluator) evaluateRegex(ruleID types.RuleID, cond types.Condition, value any, found bool) bool {
	pattern, ok := cond.Value.(string)
	if !ok || !found {
		return false
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	re, err := e.caches.pattern(pattern)
	if err != nil {
		e.logger.Debug("malformed pattern, treating as non-match",
			"rule_id", ruleID,
			"field", cond.Field,
			"error", err,
		)
		return false
	}
	return re.MatchString(s)
}

// evaluateCustom resolves and invokes a named evaluator.
// Errors and panics are contained here and count as non-match.
func (e *Evaluator) evaluateCustom(ruleID types.RuleID, cond types.Condition, data types.Context) bool {
	name := EvaluatorName(cond)
	if name == "" {
		e.logger.Warn("custom condition without evaluator name",
			"rule_id", ruleID,
			"field", cond.Field,
		)
		return false
	}

	ev, ok := e.caches.evaluator(name, e.registry)
	if !ok {
		e.logger.Warn("custom evaluator not registered",
			"rule_id", ruleID,
			"evaluator", name,
		)
		return false
	}

	matched, err := invokeCustom(ev, data, cond)
	if err != nil {
		e.logger.Warn("custom evaluator failed, treating as non-match",
			"rule_id", ruleID,
			"evaluator", name,
			"field", cond.Field,
			"error", err,
		)
		return false
	}
	return matched
}

// invokeCustom calls ev, converting a panic into ErrEvaluatorPanic.
func invokeCustom(ev CustomEvaluator, data types.Context, cond types.Condition) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = fmt.Errorf("%w: %v", types.ErrEvaluatorPanic, r)
		}
	}()
	return ev.Evaluate(data, cond)
}

// EvaluatorName returns the custom evaluator a condition refers to:
// the explicit Evaluator field, else a string Value.
func EvaluatorName(cond types.Condition) string {
	if cond.Evaluator != "" {
		return cond.Evaluator
	}
	if s, ok := cond.Value.(string); ok {
		return s
	}
	return ""
}
