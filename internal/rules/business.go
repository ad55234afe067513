// internal/rules/business.go
package rules

import (
	"context"

	"github.com/solatis/overseer/internal/types"
)

/*
 * Business-rule application.
 *
 * Unlike EvaluateAction, which judges a proposed action, ApplyBusinessRules
 * runs the active rules over arbitrary data and reports what applies:
 * which rules matched, their aggregate risk, advice to surface, and the
 * constraints the caller must enforce. It reaches no decision of its own.
 *
 * Constraints are emitted for the action types that restrict what may
 * happen next (deny, require_approval, escalate, rate_limit, transform);
 * advisory types contribute recommendations instead.
 */

// Constraint is a restriction imposed by a matching rule.
type Constraint struct {
	RuleID  types.RuleID     `json:"ruleId"`
	Type    types.ActionType `json:"type"`
	Message string           `json:"message,omitempty"`
	Params  map[string]any   `json:"params,omitempty"`
}

// BusinessRulesResult summarizes the rules that apply to a data set.
type BusinessRulesResult struct {
	RulesApplied       []types.RuleID  `json:"rulesApplied"`
	AggregateRiskScore float64         `json:"aggregateRiskScore"`
	RiskLevel          types.RiskLevel `json:"riskLevel"`
	Recommendations    []string        `json:"recommendations"`
	Constraints        []Constraint    `json:"constraints"`
}

// ApplyBusinessRules matches every active rule against data.
// The only error is ctx's.
func (e *Engine) ApplyBusinessRules(ctx context.Context, data types.Context) (*BusinessRulesResult, error) {
	res := &BusinessRulesResult{
		RulesApplied:    []types.RuleID{},
		Recommendations: []string{},
		Constraints:     []Constraint{},
	}
	if data == nil {
		data = types.Context{}
	}

	seen := make(map[string]bool)
	addRec := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		res.Recommendations = append(res.Recommendations, s)
	}

	var matched []types.Rule
	for _, rule := range e.store.Active(e.strict) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.evaluator.Matches(&rule, data) {
			continue
		}
		matched = append(matched, rule)
		res.RulesApplied = append(res.RulesApplied, rule.ID)
		addRec(RecommendationFor(rule.Category))

		for _, act := range rule.Actions {
			switch act.Type {
			case types.ActionDeny, types.ActionRequireApproval, types.ActionEscalate,
				types.ActionRateLimit, types.ActionTransform:
				res.Constraints = append(res.Constraints, Constraint{
					RuleID:  rule.ID,
					Type:    act.Type,
					Message: act.Message,
					Params:  act.Params,
				})
			case types.ActionWarn:
				addRec(act.Message)
			}
		}
	}

	res.AggregateRiskScore, res.RiskLevel = ScoreRisk(matched)
	return res, nil
}
