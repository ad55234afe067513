// internal/rules/validate.go
package rules

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/solatis/overseer/internal/types"
)

/*
 * Rule validation.
 *
 * Malformed input is reported as structured issues, never returned as an
 * error or panic, so validating a batch of rules does not stop at the first
 * bad one. Evaluation tolerates every problem reported here (the affected
 * condition simply never matches); validation exists so authors see the
 * problem before a rule silently does nothing.
 *
 * Severity "error" marks definitions that cannot behave as written;
 * "warning" marks configuration that may be fixed at runtime (for example
 * an evaluator registered after the rule).
 */

// IssueCode identifies a validation finding.
type IssueCode string

const (
	IssueEmptyID               IssueCode = "empty_id"
	IssueDuplicateID           IssueCode = "duplicate_rule_id"
	IssueUnknownOperator       IssueCode = "unknown_operator"
	IssueNonListValue          IssueCode = "non_list_value"
	IssueTooManyValues         IssueCode = "too_many_values"
	IssueInvalidRegex          IssueCode = "invalid_regex"
	IssueMissingEvaluatorName  IssueCode = "missing_evaluator_name"
	IssueUnregisteredEvaluator IssueCode = "unregistered_evaluator"
	IssuePathTooDeep           IssueCode = "path_too_deep"
	IssueEmptyField            IssueCode = "empty_field"
	IssueInvalidPriority       IssueCode = "invalid_priority"
	IssueInvalidRiskWeight     IssueCode = "invalid_risk_weight"
	IssueInvalidLogic          IssueCode = "invalid_logic"
	IssueUnknownAction         IssueCode = "unknown_action"
	IssueInvalidMinVersion     IssueCode = "invalid_min_version"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding.
type Issue struct {
	RuleID    types.RuleID `json:"ruleId"`
	Code      IssueCode    `json:"code"`
	Severity  Severity     `json:"severity"`
	Condition int          `json:"condition"` // index into Conditions, -1 for rule-level issues
	Message   string       `json:"message"`
}

// ValidateRules validates every rule and reports duplicate ids.
// registry may be nil, in which case evaluator registration is not checked.
func ValidateRules(rules []types.Rule, registry *Registry) []Issue {
	issues := []Issue{}
	seen := make(map[types.RuleID]bool, len(rules))
	for i := range rules {
		id := rules[i].ID
		if id != "" && seen[id] {
			issues = append(issues, ruleIssue(id, IssueDuplicateID, SeverityError,
				fmt.Sprintf("rule id %q appears more than once", id)))
		}
		seen[id] = true
		issues = append(issues, ValidateRule(&rules[i], registry)...)
	}
	return issues
}

// ValidateRule validates one rule definition.
func ValidateRule(rule *types.Rule, registry *Registry) []Issue {
	var issues []Issue
	id := rule.ID

	if id == "" {
		issues = append(issues, ruleIssue(id, IssueEmptyID, SeverityError, types.ErrEmptyRuleID.Error()))
	}
	if rule.Priority < 0 || rule.Priority > types.MaxPriority {
		issues = append(issues, ruleIssue(id, IssueInvalidPriority, SeverityError,
			fmt.Sprintf("priority %d outside 0-%d", rule.Priority, types.MaxPriority)))
	}
	if rule.RiskWeight < 0 || rule.RiskWeight > types.MaxRiskWeight {
		issues = append(issues, ruleIssue(id, IssueInvalidRiskWeight, SeverityError,
			fmt.Sprintf("risk weight %d outside 0-%d", rule.RiskWeight, types.MaxRiskWeight)))
	}
	if rule.Logic != "" && rule.Logic != types.LogicAll && rule.Logic != types.LogicAny {
		issues = append(issues, ruleIssue(id, IssueInvalidLogic, SeverityError,
			fmt.Sprintf("logic %q must be %q or %q", rule.Logic, types.LogicAll, types.LogicAny)))
	}
	if rule.MinVersion != "" {
		if _, err := semver.NewVersion(rule.MinVersion); err != nil {
			issues = append(issues, ruleIssue(id, IssueInvalidMinVersion, SeverityError,
				fmt.Sprintf("minVersion %q: %v", rule.MinVersion, err)))
		}
	}
	for _, act := range rule.Actions {
		if !act.Type.Valid() {
			issues = append(issues, ruleIssue(id, IssueUnknownAction, SeverityError,
				fmt.Sprintf("unknown action type %q", act.Type)))
		}
	}

	for i, cond := range rule.Conditions {
		issues = append(issues, validateCondition(id, i, cond, registry)...)
	}
	return issues
}

// validateCondition checks operator-specific value shapes.
func validateCondition(id types.RuleID, idx int, cond types.Condition, registry *Registry) []Issue {
	var issues []Issue
	add := func(code IssueCode, sev Severity, msg string) {
		issues = append(issues, Issue{RuleID: id, Code: code, Severity: sev, Condition: idx, Message: msg})
	}

	if !cond.Operator.Valid() {
		add(IssueUnknownOperator, SeverityError, fmt.Sprintf("%v: %q", types.ErrInvalidOperator, cond.Operator))
		return issues
	}

	if cond.Operator != types.OpCustom {
		if cond.Field == "" {
			add(IssueEmptyField, SeverityError, "condition field is empty")
		} else if _, err := ParsePath(cond.Field); err != nil {
			add(IssuePathTooDeep, SeverityError, fmt.Sprintf("field %q: %v", cond.Field, err))
		}
	}

	switch cond.Operator {
	case types.OpIn, types.OpNotIn:
		list, ok := toList(cond.Value)
		if !ok {
			add(IssueNonListValue, SeverityError, fmt.Sprintf("%s on %q: %v", cond.Operator, cond.Field, types.ErrNotAList))
		} else if len(list) > types.MaxInOperatorValues {
			add(IssueTooManyValues, SeverityError, fmt.Sprintf("%s on %q: %v (%d > %d)",
				cond.Operator, cond.Field, types.ErrTooManyInValues, len(list), types.MaxInOperatorValues))
		}
	case types.OpMatchesRegex:
		pattern, ok := cond.Value.(string)
		if !ok {
			add(IssueInvalidRegex, SeverityError, fmt.Sprintf("matches_regex on %q: pattern must be a string", cond.Field))
		} else if _, err := regexp.Compile(pattern); err != nil {
			add(IssueInvalidRegex, SeverityError, fmt.Sprintf("matches_regex on %q: %v", cond.Field, err))
		}
	case types.OpCustom:
		name := EvaluatorName(cond)
		if name == "" {
			add(IssueMissingEvaluatorName, SeverityError, types.ErrMissingEvaluator.Error())
		} else if registry != nil {
			if _, ok := registry.Lookup(name); !ok {
				add(IssueUnregisteredEvaluator, SeverityWarning, fmt.Sprintf("%v: %q", types.ErrEvaluatorNotFound, name))
			}
		}
	}
	return issues
}

func ruleIssue(id types.RuleID, code IssueCode, sev Severity, msg string) Issue {
	return Issue{RuleID: id, Code: code, Severity: sev, Condition: -1, Message: msg}
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}
