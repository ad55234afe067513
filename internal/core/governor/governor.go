// internal/core/governor/governor.go
package governor

import (
	"context"
	"log/slog"
	"time"

	"github.com/solatis/overseer/internal/core/logging"
	"github.com/solatis/overseer/internal/core/metrics"
	"github.com/solatis/overseer/internal/core/ratelimit"
	"github.com/solatis/overseer/internal/rules"
	"github.com/solatis/overseer/internal/types"
)

/*
 * Decision flow for one agent action.
 *
 * Rate limiting, rule evaluation, approval ticketing, audit and metrics run
 * in that order. The rules engine only decides; everything with side
 * effects lives here, and none of it can change a decision once the engine
 * has made it. A failed audit write or approval request is logged and
 * counted, and the caller still gets the engine's result.
 */

// RateLimiter gates actions before evaluation.
type RateLimiter interface {
	CheckLimit(ctx context.Context, scopeKeys []string) (bool, error)
}

// AuditSink records every decision.
type AuditSink interface {
	Record(ctx context.Context, ev types.AuditEvent) error
}

// ApprovalTicketing opens a human-approval ticket.
type ApprovalTicketing interface {
	RequestApproval(ctx context.Context, req types.ApprovalRequest) (string, error)
}

// Decision is the engine's result plus what the governor did with it.
type Decision struct {
	Result   *types.EvaluationResult
	TicketID string // set when an approval ticket was opened
}

// Governor orchestrates one decision. Collaborators are optional.
type Governor struct {
	engine    *rules.Engine
	limiter   RateLimiter
	audit     AuditSink
	approvals ApprovalTicketing
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Governor.
type Option func(*Governor)

// WithRateLimiter checks limits before every evaluation.
func WithRateLimiter(l RateLimiter) Option { return func(g *Governor) { g.limiter = l } }

// WithAuditSink records every decision.
func WithAuditSink(s AuditSink) Option { return func(g *Governor) { g.audit = s } }

// WithApprovals opens tickets for actions that require human approval.
func WithApprovals(a ApprovalTicketing) Option { return func(g *Governor) { g.approvals = a } }

// WithMetrics records decision metrics.
func WithMetrics(m *metrics.Collector) Option { return func(g *Governor) { g.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Governor) { g.logger = l } }

// New creates a governor around engine.
func New(engine *rules.Engine, opts ...Option) *Governor {
	g := &Governor{engine: engine, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.Component(g.logger, "governor")
	return g
}

// Engine returns the wrapped engine.
func (g *Governor) Engine() *rules.Engine {
	return g.engine
}

// Evaluate decides action on behalf of agentID. The returned error is
// non-nil only when ctx ends or the rate limiter itself fails.
func (g *Governor) Evaluate(ctx context.Context, agentID string, action types.ProposedAction, evalCtx types.Context) (*Decision, error) {
	if action.ID == "" {
		action.ID = types.NewActionID()
	}

	if g.limiter != nil {
		ok, err := g.limiter.CheckLimit(ctx, ratelimit.ScopeKeys(agentID, action.Tool))
		if err != nil {
			return nil, err
		}
		if !ok {
			res := g.rateLimited(action)
			g.metrics.RecordRateLimited()
			g.record(ctx, agentID, action, res)
			g.logger.Info("action rate limited", "action_id", action.ID, "agent_id", agentID, "tool", action.Tool)
			return &Decision{Result: res}, nil
		}
	}

	res, err := g.engine.EvaluateAction(ctx, action, evalCtx)
	if err != nil {
		return nil, err
	}

	d := &Decision{Result: res}
	if res.RequiresHumanApproval && g.approvals != nil {
		d.TicketID = g.requestApproval(ctx, agentID, action, res)
	}

	g.record(ctx, agentID, action, res)

	matched := make([]string, len(res.MatchedRules))
	for i, id := range res.MatchedRules {
		matched[i] = string(id)
	}
	g.metrics.RecordDecision(string(res.Status), res.RiskScore, res.Duration, matched)

	return d, nil
}

// rateLimited builds the result for an action the limiter rejected.
// No rule ran, so there is no risk to report.
func (g *Governor) rateLimited(action types.ProposedAction) *types.EvaluationResult {
	return &types.EvaluationResult{
		ActionID:       action.ID,
		Status:         types.StatusRateLimited,
		RiskLevel:      types.RiskMinimal,
		Allowed:        false,
		Violations:     []types.Violation{},
		Warnings:       []string{"rate limit exceeded"},
		MatchedRules:   []types.RuleID{},
		AppliedActions: []types.AppliedAction{},
		EvaluatedAt:    g.now(),
	}
}

func (g *Governor) requestApproval(ctx context.Context, agentID string, action types.ProposedAction, res *types.EvaluationResult) string {
	ticket, err := g.approvals.RequestApproval(ctx, types.ApprovalRequest{
		ActionID:  res.ActionID,
		AgentID:   agentID,
		Action:    action,
		Reason:    res.ApprovalReason,
		RiskScore: res.RiskScore,
		RiskLevel: res.RiskLevel,
	})
	if err != nil {
		g.metrics.RecordCollaboratorFailure("approval")
		g.logger.Error("approval ticket failed", "action_id", res.ActionID, "error", err)
		return ""
	}
	g.metrics.RecordApprovalTicket()
	g.logger.Info("approval ticket opened", "action_id", res.ActionID, "ticket_id", ticket)
	return ticket
}

func (g *Governor) record(ctx context.Context, agentID string, action types.ProposedAction, res *types.EvaluationResult) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Record(ctx, types.NewAuditEvent(agentID, action, res)); err != nil {
		g.metrics.RecordCollaboratorFailure("audit")
		g.logger.Error("audit record failed", "action_id", res.ActionID, "error", err)
	}
}
