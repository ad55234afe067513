package rules

import (
	"strings"
	"testing"

	"github.com/solatis/overseer/internal/types"
)

func issueCodes(issues []Issue) map[IssueCode]Severity {
	out := make(map[IssueCode]Severity, len(issues))
	for _, is := range issues {
		out[is.Code] = is.Severity
	}
	return out
}

func TestValidateRule(t *testing.T) {
	reg := NewRegistry()
	reg.Register("known", EvaluatorFunc(func(types.Context, types.Condition) (bool, error) { return true, nil }))

	valid := types.Rule{
		ID: "ok", Enabled: true, Priority: 100, RiskWeight: 50,
		Conditions: []types.Condition{
			{Field: "env", Operator: types.OpIn, Value: []any{"prod"}},
			{Field: "path", Operator: types.OpMatchesRegex, Value: "^/etc"},
			{Operator: types.OpCustom, Evaluator: "known"},
		},
		Actions: []types.Action{{Type: types.ActionDeny}},
	}

	tests := []struct {
		name     string
		mutate   func(r *types.Rule)
		wantCode IssueCode
		wantSev  Severity
	}{
		{"empty id", func(r *types.Rule) { r.ID = "" }, IssueEmptyID, SeverityError},
		{"priority too high", func(r *types.Rule) { r.Priority = 1001 }, IssueInvalidPriority, SeverityError},
		{"negative risk weight", func(r *types.Rule) { r.RiskWeight = -1 }, IssueInvalidRiskWeight, SeverityError},
		{"bad logic", func(r *types.Rule) { r.Logic = "xor" }, IssueInvalidLogic, SeverityError},
		{"bad min version", func(r *types.Rule) { r.MinVersion = "one.two" }, IssueInvalidMinVersion, SeverityError},
		{"unknown action", func(r *types.Rule) { r.Actions[0].Type = "explode" }, IssueUnknownAction, SeverityError},
		{"unknown operator", func(r *types.Rule) { r.Conditions[0].Operator = "like" }, IssueUnknownOperator, SeverityError},
		{"in with scalar", func(r *types.Rule) { r.Conditions[0].Value = "prod" }, IssueNonListValue, SeverityError},
		{"in too many values", func(r *types.Rule) {
			r.Conditions[0].Value = make([]any, types.MaxInOperatorValues+1)
		}, IssueTooManyValues, SeverityError},
		{"malformed regex", func(r *types.Rule) { r.Conditions[1].Value = "([" }, IssueInvalidRegex, SeverityError},
		{"regex non-string", func(r *types.Rule) { r.Conditions[1].Value = 42 }, IssueInvalidRegex, SeverityError},
		{"custom without name", func(r *types.Rule) { r.Conditions[2].Evaluator = "" }, IssueMissingEvaluatorName, SeverityError},
		{"custom unregistered", func(r *types.Rule) { r.Conditions[2].Evaluator = "later" }, IssueUnregisteredEvaluator, SeverityWarning},
		{"empty field", func(r *types.Rule) { r.Conditions[0].Field = "" }, IssueEmptyField, SeverityError},
		{"path too deep", func(r *types.Rule) {
			r.Conditions[0].Field = strings.Repeat("x.", types.MaxPathDepth) + "x"
		}, IssuePathTooDeep, SeverityError},
	}

	if issues := ValidateRule(&valid, reg); len(issues) != 0 {
		t.Fatalf("ValidateRule(valid) = %+v, want none", issues)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := cloneRule(valid)
			tt.mutate(&r)
			codes := issueCodes(ValidateRule(&r, reg))
			sev, ok := codes[tt.wantCode]
			if !ok {
				t.Fatalf("ValidateRule() codes = %v, want %s", codes, tt.wantCode)
			}
			if sev != tt.wantSev {
				t.Errorf("severity = %s, want %s", sev, tt.wantSev)
			}
		})
	}
}

func TestValidateRules_DuplicatesAndContinues(t *testing.T) {
	rules := []types.Rule{
		{ID: "a", Priority: -5},
		{ID: "a"},
		{ID: "b", Conditions: []types.Condition{{Field: "x", Operator: types.OpNotIn, Value: 3}}},
	}
	issues := ValidateRules(rules, nil)
	codes := issueCodes(issues)

	for _, want := range []IssueCode{IssueInvalidPriority, IssueDuplicateID, IssueNonListValue} {
		if _, ok := codes[want]; !ok {
			t.Errorf("ValidateRules() missing %s, got %v", want, codes)
		}
	}
	if !HasErrors(issues) {
		t.Errorf("HasErrors() = false, want true")
	}
}

func TestValidateRules_NilRegistrySkipsLookup(t *testing.T) {
	rules := []types.Rule{{
		ID:         "c",
		Conditions: []types.Condition{{Operator: types.OpCustom, Evaluator: "anything"}},
	}}
	if issues := ValidateRules(rules, nil); len(issues) != 0 {
		t.Errorf("ValidateRules() = %+v, want none", issues)
	}
}
