package rules

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/overseer/internal/types"
)

func hasChange(changes []Change, kind ChangeKind) bool {
	for _, c := range changes {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

func TestOptimizeConditions_CombineEquals(t *testing.T) {
	res := OptimizeConditions([]types.Condition{
		{Field: "env", Operator: types.OpEquals, Value: "dev"},
		{Field: "env", Operator: types.OpEquals, Value: "staging"},
		{Field: "env", Operator: types.OpEquals, Value: "prod"},
	})

	if !res.WasOptimized {
		t.Fatalf("WasOptimized = false, want true")
	}
	if len(res.Optimized) != 1 {
		t.Fatalf("len(Optimized) = %d, want 1", len(res.Optimized))
	}
	got := res.Optimized[0]
	if got.Field != "env" || got.Operator != types.OpIn {
		t.Errorf("Optimized[0] = %+v, want env in [...]", got)
	}
	if !valuesEqual(got.Value, []any{"dev", "staging", "prod"}) {
		t.Errorf("Optimized[0].Value = %v, want [dev staging prod]", got.Value)
	}
	if !hasChange(res.Changes, ChangeCombinedEquals) {
		t.Errorf("Changes = %+v, want combined_equals", res.Changes)
	}
	if len(res.Original) != 3 {
		t.Errorf("len(Original) = %d, want 3", len(res.Original))
	}
}

func TestOptimizeConditions_ReorderByCost(t *testing.T) {
	regex := types.Condition{Field: "path", Operator: types.OpMatchesRegex, Value: "^/etc"}
	env := types.Condition{Field: "env", Operator: types.OpEquals, Value: "prod"}

	res := OptimizeConditions([]types.Condition{regex, env})

	if len(res.Optimized) != 2 {
		t.Fatalf("len(Optimized) = %d, want 2", len(res.Optimized))
	}
	if !conditionsEqual(res.Optimized[0], env) || !conditionsEqual(res.Optimized[1], regex) {
		t.Errorf("Optimized = %+v, want equals before regex", res.Optimized)
	}
	if !hasChange(res.Changes, ChangeReordered) {
		t.Errorf("Changes = %+v, want reordered", res.Changes)
	}
	if res.CostAfter >= res.CostBefore {
		t.Errorf("CostAfter = %d, want < CostBefore = %d", res.CostAfter, res.CostBefore)
	}
}

func TestOptimizeConditions_Rewrites(t *testing.T) {
	tests := []struct {
		name string
		in   []types.Condition
		want []types.Condition
		kind ChangeKind
	}{
		{
			name: "duplicate removed",
			in: []types.Condition{
				{Field: "env", Operator: types.OpEquals, Value: "prod"},
				{Field: "env", Operator: types.OpEquals, Value: "prod"},
			},
			want: []types.Condition{{Field: "env", Operator: types.OpEquals, Value: "prod"}},
			kind: ChangeRemovedDuplicate,
		},
		{
			name: "equals covered by in",
			in: []types.Condition{
				{Field: "env", Operator: types.OpIn, Value: []any{"dev", "prod"}},
				{Field: "env", Operator: types.OpEquals, Value: "prod"},
			},
			want: []types.Condition{{Field: "env", Operator: types.OpIn, Value: []any{"dev", "prod"}}},
			kind: ChangeRemovedRedundant,
		},
		{
			name: "single in simplified",
			in:   []types.Condition{{Field: "env", Operator: types.OpIn, Value: []any{"prod"}}},
			want: []types.Condition{{Field: "env", Operator: types.OpEquals, Value: "prod"}},
			kind: ChangeSimplifiedIn,
		},
		{
			name: "single not_in simplified",
			in:   []types.Condition{{Field: "env", Operator: types.OpNotIn, Value: []any{"prod"}}},
			want: []types.Condition{{Field: "env", Operator: types.OpNotEquals, Value: "prod"}},
			kind: ChangeSimplifiedNotIn,
		},
		{
			name: "boolean equals not merged",
			in: []types.Condition{
				{Field: "is_admin", Operator: types.OpEquals, Value: true},
				{Field: "is_admin", Operator: types.OpEquals, Value: false},
			},
			want: []types.Condition{
				{Field: "is_admin", Operator: types.OpEquals, Value: true},
				{Field: "is_admin", Operator: types.OpEquals, Value: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := OptimizeConditions(tt.in)
			if len(res.Optimized) != len(tt.want) {
				t.Fatalf("Optimized = %+v, want %+v", res.Optimized, tt.want)
			}
			for i := range tt.want {
				if !conditionsEqual(res.Optimized[i], tt.want[i]) {
					t.Errorf("Optimized[%d] = %+v, want %+v", i, res.Optimized[i], tt.want[i])
				}
			}
			if tt.kind == "" {
				if res.WasOptimized {
					t.Errorf("WasOptimized = true, want false (changes %+v)", res.Changes)
				}
				return
			}
			if !hasChange(res.Changes, tt.kind) {
				t.Errorf("Changes = %+v, want %s", res.Changes, tt.kind)
			}
		})
	}
}

func TestOptimizeRule_AllLogicKeepsEquals(t *testing.T) {
	rule := types.Rule{
		ID: "r",
		Conditions: []types.Condition{
			{Field: "env", Operator: types.OpEquals, Value: "dev"},
			{Field: "env", Operator: types.OpEquals, Value: "prod"},
		},
	}

	optimized, res := OptimizeRule(rule)
	if len(optimized.Conditions) != 2 {
		t.Errorf("all-logic conditions = %+v, want both equals kept", optimized.Conditions)
	}
	if hasChange(res.Changes, ChangeCombinedEquals) {
		t.Errorf("Changes = %+v, want no combined_equals for all logic", res.Changes)
	}

	rule.Logic = types.LogicAny
	optimized, _ = OptimizeRule(rule)
	if len(optimized.Conditions) != 1 || optimized.Conditions[0].Operator != types.OpIn {
		t.Errorf("any-logic conditions = %+v, want single in", optimized.Conditions)
	}
	if len(rule.Conditions) != 2 {
		t.Errorf("input rule modified: %+v", rule.Conditions)
	}
}

func TestOptimizeConditions_NestedRedundancy(t *testing.T) {
	// in [a] simplifies to equals a, which then merges with equals b
	res := OptimizeConditions([]types.Condition{
		{Field: "env", Operator: types.OpEquals, Value: "a"},
		{Field: "env", Operator: types.OpEquals, Value: "b"},
		{Field: "env", Operator: types.OpIn, Value: []any{"a"}},
	})
	if len(res.Optimized) != 1 || res.Optimized[0].Operator != types.OpIn {
		t.Fatalf("Optimized = %+v, want single in", res.Optimized)
	}

	again := OptimizeConditions(res.Optimized)
	if again.WasOptimized {
		t.Errorf("second pass WasOptimized = true, changes %+v", again.Changes)
	}
}

func TestFieldCost(t *testing.T) {
	tests := []struct {
		field string
		want  int
	}{
		{"env", FieldCostSimple},
		{"is_admin", FieldCostBoolean},
		{"hasAccess", FieldCostBoolean},
		{"file_count", FieldCostComputed},
		{"name_pattern", FieldCostPattern},
		{"description", FieldCostDefault},
		{"action.type", FieldCostSimple + 1},
		{"a.b.c.d.e.f", FieldCostDefault + 3},
	}
	for _, tt := range tests {
		if got := FieldCost(tt.field); got != tt.want {
			t.Errorf("FieldCost(%q) = %d, want %d", tt.field, got, tt.want)
		}
	}
}

// decodeCondition maps an integer onto a small condition space so that
// generated lists contain duplicates, overlaps and mergeable equals.
func decodeCondition(code int) types.Condition {
	fields := []string{"env", "path", "is_admin"}
	values := []any{"a", "b", 1}
	field := fields[code%3]
	value := values[(code/3)%3]
	switch (code / 9) % 6 {
	case 0:
		return types.Condition{Field: field, Operator: types.OpEquals, Value: value}
	case 1:
		return types.Condition{Field: field, Operator: types.OpIn, Value: []any{value}}
	case 2:
		return types.Condition{Field: field, Operator: types.OpIn, Value: []any{value, "b"}}
	case 3:
		return types.Condition{Field: field, Operator: types.OpNotIn, Value: []any{value}}
	case 4:
		return types.Condition{Field: field, Operator: types.OpMatchesRegex, Value: "^a"}
	default:
		return types.Condition{Field: field, Operator: types.OpExists}
	}
}

// Property-based test: optimizing an optimized list changes nothing
func TestOptimizeConditions_PropertyIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("optimize is idempotent", prop.ForAll(
		func(codes []int) bool {
			conds := make([]types.Condition, len(codes))
			for i, c := range codes {
				conds[i] = decodeCondition(c)
			}
			first := OptimizeConditions(conds)
			second := OptimizeConditions(first.Optimized)
			if second.WasOptimized || len(second.Optimized) != len(first.Optimized) {
				return false
			}
			for i := range first.Optimized {
				if !conditionsEqual(first.Optimized[i], second.Optimized[i]) {
					return false
				}
			}
			return len(first.Optimized) <= len(conds)
		},
		gen.SliceOf(gen.IntRange(0, 53)),
	))

	properties.Property("reordering never raises positional cost", prop.ForAll(
		func(codes []int) bool {
			conds := make([]types.Condition, len(codes))
			for i, c := range codes {
				conds[i] = decodeCondition(c)
			}
			res := OptimizeConditions(conds)
			return res.CostAfter <= res.CostBefore
		},
		gen.SliceOf(gen.IntRange(0, 53)),
	))

	properties.TestingRun(t)
}
