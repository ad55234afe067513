package celeval

import (
	"context"
	"errors"
	"testing"

	"github.com/solatis/overseer/internal/rules"
	"github.com/solatis/overseer/internal/types"
)

var _ rules.CustomEvaluator = (*Evaluator)(nil)

func TestEvaluate(t *testing.T) {
	data := types.Context{
		"env": "prod",
		"action": map[string]any{
			"type":   "shell_exec",
			"params": map[string]any{"command": "rm -rf /var/lib"},
		},
		"retries": 3,
	}

	tests := []struct {
		name    string
		expr    string
		cond    types.Condition
		want    bool
		wantErr bool
	}{
		{
			name: "context comparison",
			expr: `ctx.env == "prod"`,
			want: true,
		},
		{
			name: "nested action with condition value",
			expr: `ctx.action.type == "shell_exec" && ctx.action.params.command.contains(value)`,
			cond: types.Condition{Value: "rm -rf"},
			want: true,
		},
		{
			name: "field variable",
			expr: `field == "action.type"`,
			cond: types.Condition{Field: "action.type"},
			want: true,
		},
		{
			name: "numeric comparison",
			expr: `ctx.retries > 5`,
			want: false,
		},
		{
			name: "has macro on missing key",
			expr: `has(ctx.user)`,
			want: false,
		},
		{
			name:    "missing key is an error",
			expr:    `ctx.user == "alice"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile() error = %v, want nil", err)
			}
			got, err := ev.Evaluate(data, tt.cond)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Evaluate() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Evaluate() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	for _, expr := range []string{`ctx.env ==`, `unknown_var == 1`} {
		if _, err := Compile(expr); err == nil {
			t.Errorf("Compile(%q) error = nil, want error", expr)
		}
	}
}

func TestEvaluate_NonBoolean(t *testing.T) {
	ev, err := Compile(`"text"`)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	_, err = ev.Evaluate(nil, types.Condition{})
	if !errors.Is(err, types.ErrNonBooleanResult) {
		t.Errorf("Evaluate() error = %v, want ErrNonBooleanResult", err)
	}
}

func TestEvaluator_InEngine(t *testing.T) {
	e, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v, want nil", err)
	}
	ev, err := Compile(`ctx.action.target.startsWith(value)`)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if err := e.RegisterCustomEvaluator("target_prefix", ev); err != nil {
		t.Fatalf("RegisterCustomEvaluator() error = %v, want nil", err)
	}
	err = e.RegisterRule(types.Rule{
		ID: "no-etc", Enabled: true, RiskWeight: 80,
		Conditions: []types.Condition{{Operator: types.OpCustom, Evaluator: "target_prefix", Value: "/etc/"}},
		Actions:    []types.Action{{Type: types.ActionDeny}},
	})
	if err != nil {
		t.Fatalf("RegisterRule() error = %v, want nil", err)
	}

	res, err := e.EvaluateAction(context.Background(), types.ProposedAction{Type: "file_write", Target: "/etc/hosts"}, nil)
	if err != nil {
		t.Fatalf("EvaluateAction() error = %v, want nil", err)
	}
	if res.Status != types.StatusDenied {
		t.Errorf("Status = %v, want denied", res.Status)
	}

	res, _ = e.EvaluateAction(context.Background(), types.ProposedAction{Type: "file_write", Target: "/tmp/x"}, nil)
	if res.Status != types.StatusApproved {
		t.Errorf("Status = %v, want approved", res.Status)
	}
}
