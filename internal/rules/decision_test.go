package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/solatis/overseer/internal/types"
)

func newTestProcessor(rules ...types.Rule) *Processor {
	store := NewStore()
	store.RegisterMany(rules)
	return NewProcessor(store, NewEvaluator(store.Caches(), nil, nil), false, nil)
}

func actionTypeIs(t string) []types.Condition {
	return []types.Condition{{Field: "action.type", Operator: types.OpEquals, Value: t}}
}

func TestProcess_DenyDominates(t *testing.T) {
	p := newTestProcessor(
		types.Rule{
			ID: "no-delete", Name: "block deletes", Category: types.CategorySecurity,
			Enabled: true, Priority: 900, RiskWeight: 90,
			Conditions: actionTypeIs("file_delete"),
			Actions:    []types.Action{{Type: types.ActionDeny, Message: "deletes are blocked"}},
		},
		types.Rule{
			ID: "review-delete", Name: "review deletes", Category: types.CategoryOperational,
			Enabled: true, Priority: 500, RiskWeight: 40,
			Conditions: actionTypeIs("file_delete"),
			Actions:    []types.Action{{Type: types.ActionRequireApproval}},
		},
		types.Rule{
			ID: "warn-delete", Name: "warn deletes", Category: types.CategoryQuality,
			Enabled: true, Priority: 100, RiskWeight: 10,
			Conditions: actionTypeIs("file_delete"),
			Actions:    []types.Action{{Type: types.ActionWarn, Message: "deleting files"}},
		},
		types.Rule{
			ID: "unrelated", Name: "reads", Enabled: true, Priority: 1000, RiskWeight: 100,
			Conditions: actionTypeIs("file_read"),
			Actions:    []types.Action{{Type: types.ActionDeny}},
		},
	)

	res, err := p.Process(context.Background(), types.ProposedAction{Type: "file_delete", Target: "/tmp/x"}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}

	if res.Status != types.StatusDenied {
		t.Errorf("Status = %v, want denied", res.Status)
	}
	if res.Allowed {
		t.Errorf("Allowed = true, want false")
	}
	if !res.RequiresHumanApproval {
		t.Errorf("RequiresHumanApproval = false, want true")
	}
	if res.ApprovalReason != `Rule "review deletes" requires human approval` {
		t.Errorf("ApprovalReason = %q", res.ApprovalReason)
	}
	if !equalIDs(res.MatchedRules, []types.RuleID{"no-delete", "review-delete", "warn-delete"}) {
		t.Errorf("MatchedRules = %v, want [no-delete review-delete warn-delete]", res.MatchedRules)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("len(Violations) = %d, want 1", len(res.Violations))
	}
	v := res.Violations[0]
	if v.RuleID != "no-delete" || v.Message != "deletes are blocked" || v.Severity != types.RiskCritical {
		t.Errorf("Violation = %+v", v)
	}
	if v.Recommendation != RecommendationFor(types.CategorySecurity) {
		t.Errorf("Recommendation = %q, want security recommendation", v.Recommendation)
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "deleting files" {
		t.Errorf("Warnings = %v, want [deleting files]", res.Warnings)
	}
	if len(res.AppliedActions) != 3 {
		t.Errorf("len(AppliedActions) = %d, want 3", len(res.AppliedActions))
	}
	if res.ActionID == "" {
		t.Errorf("ActionID is empty, want generated id")
	}
	if _, err := types.ParseActionID(string(res.ActionID)); err != nil {
		t.Errorf("ParseActionID(%q) error = %v, want nil", res.ActionID, err)
	}
}

func TestProcess_StatusPrecedence(t *testing.T) {
	rule := func(id string, act types.ActionType) types.Rule {
		return types.Rule{
			ID: types.RuleID(id), Name: id, Enabled: true, RiskWeight: 10,
			Actions: []types.Action{{Type: act}},
		}
	}

	tests := []struct {
		name        string
		rules       []types.Rule
		wantStatus  types.Status
		wantAllowed bool
	}{
		{"no rules", nil, types.StatusApproved, true},
		{"allow only", []types.Rule{rule("a", types.ActionAllow)}, types.StatusApproved, true},
		{"log and notify", []types.Rule{rule("a", types.ActionLog), rule("b", types.ActionNotify)}, types.StatusApproved, true},
		{"warn", []types.Rule{rule("a", types.ActionWarn)}, types.StatusRequiresReview, true},
		{"approval beats warn", []types.Rule{rule("a", types.ActionWarn), rule("b", types.ActionRequireApproval)}, types.StatusPendingApproval, true},
		{"escalate", []types.Rule{rule("a", types.ActionEscalate)}, types.StatusPendingApproval, true},
		{"rate limit beats approval", []types.Rule{rule("a", types.ActionRequireApproval), rule("b", types.ActionRateLimit)}, types.StatusRateLimited, false},
		{"deny beats rate limit", []types.Rule{rule("a", types.ActionRateLimit), rule("b", types.ActionDeny)}, types.StatusDenied, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(tt.rules...)
			res, err := p.Process(context.Background(), types.ProposedAction{ID: "fixed", Type: "x"}, types.Context{})
			if err != nil {
				t.Fatalf("Process() error = %v, want nil", err)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", res.Status, tt.wantStatus)
			}
			if res.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", res.Allowed, tt.wantAllowed)
			}
			if res.ActionID != "fixed" {
				t.Errorf("ActionID = %q, want fixed", res.ActionID)
			}
		})
	}
}

func TestProcess_EscalateReason(t *testing.T) {
	p := newTestProcessor(types.Rule{
		ID: "esc", Name: "escalation", Enabled: true,
		Actions: []types.Action{{Type: types.ActionEscalate, Message: "page security on-call"}},
	})
	res, err := p.Process(context.Background(), types.ProposedAction{Type: "x"}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
	if res.ApprovalReason != "Escalated: page security on-call" {
		t.Errorf("ApprovalReason = %q, want escalated reason", res.ApprovalReason)
	}
}

func TestProcess_ActionOverridesContextKey(t *testing.T) {
	p := newTestProcessor(types.Rule{
		ID: "r", Enabled: true,
		Conditions: []types.Condition{{Field: "action.tool", Operator: types.OpEquals, Value: "shell"}},
		Actions:    []types.Action{{Type: types.ActionDeny}},
	})
	evalCtx := types.Context{"action": map[string]any{"tool": "editor"}, "env": "prod"}

	res, err := p.Process(context.Background(), types.ProposedAction{Type: "exec", Tool: "shell"}, evalCtx)
	if err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
	if res.Status != types.StatusDenied {
		t.Errorf("Status = %v, want denied", res.Status)
	}
	if _, ok := evalCtx["action"].(map[string]any)["type"]; ok {
		t.Errorf("caller context was modified")
	}
}

func TestProcess_ContextCancelled(t *testing.T) {
	p := newTestProcessor(types.Rule{ID: "r", Enabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, types.ProposedAction{Type: "x"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Process() error = %v, want context.Canceled", err)
	}
}

func TestProcess_DefaultMessages(t *testing.T) {
	p := newTestProcessor(
		types.Rule{ID: "d", Name: "deny-it", Enabled: true, Priority: 2, Actions: []types.Action{{Type: types.ActionDeny}}},
		types.Rule{ID: "w", Name: "warn-it", Enabled: true, Priority: 1, Actions: []types.Action{{Type: types.ActionWarn}}},
	)
	res, err := p.Process(context.Background(), types.ProposedAction{Type: "x"}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
	if got := res.Violations[0].Message; got != `Action denied by rule "deny-it"` {
		t.Errorf("violation message = %q", got)
	}
	if got := res.Warnings[0]; got != `Rule "warn-it" raised a warning` {
		t.Errorf("warning = %q", got)
	}
	if got := res.Violations[0].Recommendation; got != defaultRecommendation {
		t.Errorf("recommendation = %q, want default", got)
	}
}
