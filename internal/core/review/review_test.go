package review

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/solatis/overseer/internal/core/metrics"
	"github.com/solatis/overseer/internal/depgraph"
	"github.com/solatis/overseer/internal/types"
)

type fixedRules []types.Rule

func (f fixedRules) ListRules() []types.Rule { return f }

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	if _, err := NewScheduler("every tuesday", fixedRules(nil), nil, nil); err == nil {
		t.Errorf("NewScheduler() error = nil, want error")
	}
}

func TestRunOnce(t *testing.T) {
	src := fixedRules{
		{ID: "a", Enabled: true, DependsOn: []types.RuleID{"b"}},
		{ID: "b", Enabled: true, DependsOn: []types.RuleID{"a"}},
		{ID: "c", Enabled: true, DependsOn: []types.RuleID{"ghost"}},
	}
	m := metrics.New()
	s, err := NewScheduler("@hourly", src, m, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v, want nil", err)
	}
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	if _, ok := s.Last(); ok {
		t.Errorf("Last() ok = true before any review")
	}

	rep := s.RunOnce()
	if rep.Rules != 3 || rep.Cycles != 1 {
		t.Errorf("Report = %+v, want 3 rules and 1 cycle", rep)
	}
	if rep.Result.Valid {
		t.Errorf("Result.Valid = true, want false")
	}
	counts := rep.Counts()
	if counts[depgraph.CodeCircularDependency] != 1 || counts[depgraph.CodeMissingDependency] != 1 {
		t.Errorf("Counts() = %v", counts)
	}

	last, ok := s.Last()
	if !ok || !last.At.Equal(rep.At) {
		t.Errorf("Last() = %+v, %v, want the report just produced", last, ok)
	}

	want := `
# HELP overseer_review_cycles Dependency cycles found by the last rule-set review.
# TYPE overseer_review_cycles gauge
overseer_review_cycles 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(want), "overseer_review_cycles"); err != nil {
		t.Errorf("review_cycles gauge: %v", err)
	}
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler("@every 1h", fixedRules(nil), nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v, want nil", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	if err := s.Start(); err == nil {
		t.Errorf("second Start() error = nil, want error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	s.Stop(ctx)
}
