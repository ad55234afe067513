// internal/core/review/review.go
package review

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/solatis/overseer/internal/core/logging"
	"github.com/solatis/overseer/internal/core/metrics"
	"github.com/solatis/overseer/internal/depgraph"
	"github.com/solatis/overseer/internal/types"
)

/*
 * Scheduled rule-set review.
 *
 * On a cron schedule the live rule set's dependency structure is analyzed;
 * findings are logged and published as gauges.
 */

// RuleSource lists the rules to review.
type RuleSource interface {
	ListRules() []types.Rule
}

// Report is the outcome of one review.
type Report struct {
	At     time.Time
	Rules  int
	Cycles int
	Result depgraph.ValidationResult
}

// Counts tallies findings by code, errors and warnings together.
func (r Report) Counts() map[string]int {
	out := make(map[string]int)
	for _, f := range r.Result.Errors {
		out[f.Code]++
	}
	for _, f := range r.Result.Warnings {
		out[f.Code]++
	}
	return out
}

// Scheduler runs reviews on a cron schedule.
type Scheduler struct {
	source   RuleSource
	schedule string
	metrics  *metrics.Collector
	logger   *slog.Logger
	cron     *cron.Cron
	now      func() time.Time

	mu      sync.Mutex
	running bool
	last    *Report
}

// NewScheduler creates a scheduler. schedule is a standard five-field cron
// expression or a descriptor such as "@hourly".
func NewScheduler(schedule string, source RuleSource, m *metrics.Collector, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid review schedule %q: %w", schedule, err)
	}
	logger = logging.Component(logger, "review")
	cl := cronLogger{logger}
	return &Scheduler{
		source:   source,
		schedule: schedule,
		metrics:  m,
		logger:   logger,
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		now:      time.Now,
	}, nil
}

// Start schedules reviews. Calling Start twice is an error.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("review scheduler already running")
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce() }); err != nil {
		return fmt.Errorf("schedule review: %w", err)
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("review scheduler started", "schedule", s.schedule)
	return nil
}

// Stop halts scheduling and waits for a running review, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("review still running at shutdown")
	}
}

// RunOnce reviews the current rule set immediately.
func (s *Scheduler) RunOnce() Report {
	list := s.source.ListRules()
	g := depgraph.Analyze(list)
	rep := Report{
		At:     s.now(),
		Rules:  len(list),
		Cycles: len(g.Cycles),
		Result: g.Validate(),
	}

	for _, f := range rep.Result.Errors {
		s.logger.Warn("rule set error", "code", f.Code, "rule_id", f.RuleID, "message", f.Message)
	}
	for _, f := range rep.Result.Warnings {
		s.logger.Info("rule set warning", "code", f.Code, "rule_id", f.RuleID, "message", f.Message)
	}
	s.logger.Info("rule set reviewed",
		"rules", rep.Rules,
		"errors", len(rep.Result.Errors),
		"warnings", len(rep.Result.Warnings),
		"cycles", rep.Cycles)

	s.metrics.RecordReview(rep.Counts(), rep.Cycles, rep.At)

	s.mu.Lock()
	s.last = &rep
	s.mu.Unlock()
	return rep
}

// Last returns the most recent report, if any.
func (s *Scheduler) Last() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
