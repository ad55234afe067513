// internal/rules/decision.go
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/overseer/internal/types"
)

/*
 * Decision processing.
 *
 * Walks active rules in priority order and folds the actions of every
 * matching rule into one EvaluationResult. Evaluation never stops at the
 * first deny: all active rules run so the audit trail carries every
 * applicable violation and warning.
 *
 * Action effects:
 *   - deny: terminal denied flag + violation
 *   - require_approval: approval flag, reason (last writer wins)
 *   - escalate: as require_approval, reason prefixed "Escalated:"
 *   - warn: warning message
 *   - rate_limit: rate-limited flag (declarative signal, no limiter call)
 *   - allow/log/notify/transform: recorded, no effect on status
 *
 * Status precedence: denied > rate_limited > pending_approval >
 * requires_review (warnings only) > approved. Allowed is false only for
 * denied and rate_limited.
 *
 * The proposed action is exposed to conditions under the "action" key of
 * the evaluation context, replacing any caller-supplied value there.
 */

// ActionContextKey is the context key holding the proposed action's fields.
const ActionContextKey = "action"

// Processor produces decisions from the active rules of a store.
type Processor struct {
	store     *Store
	evaluator *Evaluator
	strict    bool
	logger    *slog.Logger
	now       func() time.Time
}

// NewProcessor creates a decision processor.
func NewProcessor(store *Store, evaluator *Evaluator, strict bool, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:     store,
		evaluator: evaluator,
		strict:    strict,
		logger:    logger.With("component", "rules.decision"),
		now:       time.Now,
	}
}

// decisionState accumulates effects while walking rules.
type decisionState struct {
	denied           bool
	rateLimited      bool
	approvalRequired bool
	approvalReason   string
	violations       []types.Violation
	warnings         []string
	applied          []types.AppliedAction
	matchedIDs       []types.RuleID
	matched          []types.Rule
}

// Process evaluates action against the active rules.
// The only error is ctx's, checked between rules.
func (p *Processor) Process(ctx context.Context, action types.ProposedAction, evalCtx types.Context) (*types.EvaluationResult, error) {
	start := p.now()
	if action.ID == "" {
		action.ID = types.NewActionID()
	}

	data := evalCtx.Clone()
	data[ActionContextKey] = action.Fields()

	st := &decisionState{
		violations: []types.Violation{},
		warnings:   []string{},
		applied:    []types.AppliedAction{},
		matchedIDs: []types.RuleID{},
	}

	for _, rule := range p.store.Active(p.strict) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !p.evaluator.Matches(&rule, data) {
			continue
		}
		st.matchedIDs = append(st.matchedIDs, rule.ID)
		st.matched = append(st.matched, rule)
		for _, act := range rule.Actions {
			p.apply(st, &rule, act)
		}
	}

	score, level := ScoreRisk(st.matched)
	status := finalStatus(st)

	result := &types.EvaluationResult{
		ActionID:              action.ID,
		Status:                status,
		RiskScore:             score,
		RiskLevel:             level,
		Allowed:               status != types.StatusDenied && status != types.StatusRateLimited,
		Violations:            st.violations,
		Warnings:              st.warnings,
		MatchedRules:          st.matchedIDs,
		AppliedActions:        st.applied,
		RequiresHumanApproval: st.approvalRequired,
		ApprovalReason:        st.approvalReason,
		EvaluatedAt:           start,
		Duration:              p.now().Sub(start),
	}

	p.logger.Debug("action evaluated",
		"action_id", result.ActionID,
		"action_type", action.Type,
		"status", result.Status,
		"risk_score", result.RiskScore,
		"matched_rules", len(result.MatchedRules),
	)
	return result, nil
}

// apply folds one action of a matching rule into st.
func (p *Processor) apply(st *decisionState, rule *types.Rule, act types.Action) {
	switch act.Type {
	case types.ActionDeny:
		st.denied = true
		msg := act.Message
		if msg == "" {
			msg = fmt.Sprintf("Action denied by rule %q", rule.Name)
		}
		st.violations = append(st.violations, types.Violation{
			RuleID:         rule.ID,
			RuleName:       rule.Name,
			Severity:       types.RiskLevelFor(float64(rule.RiskWeight)),
			Message:        msg,
			Recommendation: RecommendationFor(rule.Category),
		})
	case types.ActionRequireApproval:
		st.approvalRequired = true
		st.approvalReason = approvalReason(rule, act)
	case types.ActionEscalate:
		st.approvalRequired = true
		st.approvalReason = "Escalated: " + approvalReason(rule, act)
	case types.ActionWarn:
		msg := act.Message
		if msg == "" {
			msg = fmt.Sprintf("Rule %q raised a warning", rule.Name)
		}
		st.warnings = append(st.warnings, msg)
	case types.ActionRateLimit:
		st.rateLimited = true
	case types.ActionAllow, types.ActionLog, types.ActionNotify, types.ActionTransform:
		// recorded only
	default:
		p.logger.Debug("unknown action type ignored",
			"rule_id", rule.ID,
			"action_type", act.Type,
		)
		return
	}
	st.applied = append(st.applied, types.AppliedAction{
		RuleID:  rule.ID,
		Type:    act.Type,
		Message: act.Message,
	})
}

func approvalReason(rule *types.Rule, act types.Action) string {
	if act.Message != "" {
		return act.Message
	}
	return fmt.Sprintf("Rule %q requires human approval", rule.Name)
}

// finalStatus applies status precedence, most severe first.
func finalStatus(st *decisionState) types.Status {
	switch {
	case st.denied:
		return types.StatusDenied
	case st.rateLimited:
		return types.StatusRateLimited
	case st.approvalRequired:
		return types.StatusPendingApproval
	case len(st.warnings) > 0:
		return types.StatusRequiresReview
	default:
		return types.StatusApproved
	}
}
