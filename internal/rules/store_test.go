package rules

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/solatis/overseer/internal/types"
)

func ids(rules []types.Rule) []types.RuleID {
	out := make([]types.RuleID, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}

func equalIDs(a, b []types.RuleID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStore_ActiveOrdering(t *testing.T) {
	s := NewStore()
	s.RegisterMany([]types.Rule{
		{ID: "low", Enabled: true, Priority: 10},
		{ID: "high", Enabled: true, Priority: 900},
		{ID: "tie-a", Enabled: true, Priority: 500},
		{ID: "off", Enabled: false, Priority: 1000},
		{ID: "tie-b", Enabled: true, Priority: 500},
		{ID: "old", Enabled: true, Priority: 500, Deprecated: true},
	})

	got := ids(s.Active(false))
	want := []types.RuleID{"high", "tie-a", "tie-b", "old", "low"}
	if !equalIDs(got, want) {
		t.Errorf("Active(false) = %v, want %v", got, want)
	}

	got = ids(s.Active(true))
	want = []types.RuleID{"high", "tie-a", "tie-b", "low"}
	if !equalIDs(got, want) {
		t.Errorf("Active(true) = %v, want %v", got, want)
	}
}

func TestStore_UpsertKeepsPosition(t *testing.T) {
	s := NewStore()
	s.Register(types.Rule{ID: "a", Enabled: true, Priority: 100, Name: "first"})
	s.Register(types.Rule{ID: "b", Enabled: true, Priority: 100})
	s.Register(types.Rule{ID: "a", Enabled: true, Priority: 100, Name: "second"})

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	got := ids(s.Active(false))
	if !equalIDs(got, []types.RuleID{"a", "b"}) {
		t.Errorf("Active() = %v, want [a b]", got)
	}
	r, ok := s.Get("a")
	if !ok {
		t.Fatalf("Get(a) ok = false, want true")
	}
	if r.Name != "second" {
		t.Errorf("Get(a).Name = %q, want second", r.Name)
	}
}

func TestStore_CacheInvalidation(t *testing.T) {
	s := NewStore()
	reg := NewRegistry()
	reg.Register("always", EvaluatorFunc(func(types.Context, types.Condition) (bool, error) {
		return true, nil
	}))
	ev := NewEvaluator(s.Caches(), reg, nil)
	data := types.Context{"env": "prod"}
	warm := func() {
		ev.Evaluate(types.Condition{Field: "env", Operator: types.OpMatchesRegex, Value: "^p"}, data)
		ev.Evaluate(types.Condition{Field: "env", Operator: types.OpIn, Value: []any{"prod", "stage"}}, data)
		ev.Evaluate(types.Condition{Operator: types.OpCustom, Evaluator: "always"}, data)
	}
	full := CacheStats{Evaluators: 1, Patterns: 1, MembershipSets: 1}

	tests := []struct {
		name   string
		mutate func()
		want   CacheStats
	}{
		{"Register", func() { s.Register(types.Rule{ID: "a", Enabled: true}) }, CacheStats{}},
		{"RegisterMany", func() { s.RegisterMany([]types.Rule{{ID: "b"}, {ID: "c"}}) }, CacheStats{}},
		{"no-op Unregister", func() { s.Unregister("missing") }, full},
		{"Unregister", func() { s.Unregister("c") }, CacheStats{}},
		{"Replace", func() { s.Replace([]types.Rule{{ID: "a"}}) }, CacheStats{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warm()
			if got := s.Caches().Stats(); got != full {
				t.Fatalf("Stats() before %s = %+v, want %+v", tt.name, got, full)
			}
			tt.mutate()
			if got := s.Caches().Stats(); got != tt.want {
				t.Errorf("Stats() after %s = %+v, want %+v", tt.name, got, tt.want)
			}
		})
	}
}

func TestStore_Replace(t *testing.T) {
	s := NewStore()
	s.RegisterMany([]types.Rule{
		{ID: "a", Enabled: true, Priority: 5},
		{ID: "b", Enabled: true, Priority: 5},
		{ID: "c", Enabled: true, Priority: 5},
	})

	removed := s.Replace([]types.Rule{
		{ID: "d", Enabled: true, Priority: 5},
		{ID: "c", Enabled: true, Priority: 5, Name: "updated"},
	})
	if !equalIDs(removed, []types.RuleID{"a", "b"}) {
		t.Errorf("Replace() removed = %v, want [a b]", removed)
	}
	// c keeps its original position ahead of the newly added d.
	if got := ids(s.Active(false)); !equalIDs(got, []types.RuleID{"c", "d"}) {
		t.Errorf("Active() = %v, want [c d]", got)
	}
	if r, _ := s.Get("c"); r.Name != "updated" {
		t.Errorf("Get(c).Name = %q, want updated", r.Name)
	}

	if removed := s.Replace(nil); !equalIDs(removed, []types.RuleID{"c", "d"}) {
		t.Errorf("Replace(nil) removed = %v, want [c d]", removed)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStore_CopiesRules(t *testing.T) {
	s := NewStore()
	rule := types.Rule{
		ID:         "a",
		Enabled:    true,
		Conditions: []types.Condition{{Field: "env", Operator: types.OpEquals, Value: "prod"}},
	}
	s.Register(rule)
	rule.Conditions[0].Value = "dev"

	got, _ := s.Get("a")
	if got.Conditions[0].Value != "prod" {
		t.Errorf("stored condition value = %v, want prod", got.Conditions[0].Value)
	}
}

func TestStore_VersionGating(t *testing.T) {
	s := NewStore()
	s.SetVersion(semver.MustParse("1.4.0"))
	s.RegisterMany([]types.Rule{
		{ID: "any", Enabled: true},
		{ID: "old", Enabled: true, MinVersion: "1.2.0"},
		{ID: "same", Enabled: true, MinVersion: "1.4.0"},
		{ID: "future", Enabled: true, MinVersion: "2.0.0"},
		{ID: "garbled", Enabled: true, MinVersion: "not-a-version"},
	})

	got := ids(s.Active(false))
	want := []types.RuleID{"any", "old", "same", "garbled"}
	if !equalIDs(got, want) {
		t.Errorf("Active(false) = %v, want %v", got, want)
	}

	got = ids(s.Active(true))
	want = []types.RuleID{"any", "old", "same"}
	if !equalIDs(got, want) {
		t.Errorf("Active(true) = %v, want %v", got, want)
	}

	s.SetVersion(nil)
	if n := len(s.Active(true)); n != 5 {
		t.Errorf("len(Active(true)) without version = %d, want 5", n)
	}
}
