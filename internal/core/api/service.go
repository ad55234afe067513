// Package api implements the Governance gRPC service.
//
// The service has no generated stubs: every method takes and returns a
// google.protobuf.Struct holding the JSON form of the domain types in
// internal/types, internal/rules and internal/depgraph. ServiceDesc in
// desc.go registers the methods by hand.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solatis/overseer/internal/core/auth"
	"github.com/solatis/overseer/internal/core/governor"
	"github.com/solatis/overseer/internal/core/logging"
	"github.com/solatis/overseer/internal/core/metrics"
	"github.com/solatis/overseer/internal/depgraph"
	"github.com/solatis/overseer/internal/rules"
	"github.com/solatis/overseer/internal/ruleset"
	"github.com/solatis/overseer/internal/types"
	"google.golang.org/protobuf/types/known/structpb"
)

var errInvalidRequest = errors.New("invalid request")

// RuleStore persists rules registered through the API.
type RuleStore interface {
	Save(ctx context.Context, rule types.Rule) error
	Delete(ctx context.Context, id types.RuleID) error
}

// Service implements GovernanceServer on top of a governor.
type Service struct {
	governor *governor.Governor
	engine   *rules.Engine
	store    RuleStore
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewService creates the service. store and m may be nil.
func NewService(g *governor.Governor, store RuleStore, m *metrics.Collector, logger *slog.Logger) (*Service, error) {
	if g == nil {
		return nil, fmt.Errorf("governor cannot be nil")
	}
	return &Service{
		governor: g,
		engine:   g.Engine(),
		store:    store,
		metrics:  m,
		logger:   logging.Component(logger, "api"),
	}, nil
}

var _ GovernanceServer = (*Service)(nil)

type evaluateRequest struct {
	Action  types.ProposedAction `json:"action"`
	Context types.Context        `json:"context"`
}

type evaluateResponse struct {
	Result   *types.EvaluationResult `json:"result"`
	TicketID string                  `json:"ticketId,omitempty"`
}

// EvaluateAction decides {"action": {...}, "context": {...}} for the
// authenticated agent. Returns {"result": {...}, "ticketId": "..."}.
func (s *Service) EvaluateAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req evaluateRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalidRequest, err))
	}
	if req.Action.Type == "" {
		return nil, toStatus(fmt.Errorf("%w: action.type is required", errInvalidRequest))
	}
	if req.Action.ID != "" {
		if _, err := types.ParseActionID(string(req.Action.ID)); err != nil {
			return nil, toStatus(fmt.Errorf("%w: action.id: %v", errInvalidRequest, err))
		}
	}

	d, err := s.governor.Evaluate(ctx, auth.AgentIDFromContext(ctx), req.Action, req.Context)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(evaluateResponse{Result: d.Result, TicketID: d.TicketID})
}

type businessRequest struct {
	Data types.Context `json:"data"`
}

// ApplyBusinessRules matches the active rules against {"data": {...}}.
func (s *Service) ApplyBusinessRules(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req businessRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalidRequest, err))
	}
	res, err := s.engine.ApplyBusinessRules(ctx, req.Data)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(res)
}

type ruleRequest struct {
	Rule   *types.Rule  `json:"rule"`
	RuleID types.RuleID `json:"ruleId"`
}

type registerResponse struct {
	RuleID types.RuleID  `json:"ruleId"`
	Issues []rules.Issue `json:"issues"`
}

// RegisterRule validates and upserts {"rule": {...}}. A rule without an id
// gets a generated one; a rule without "enabled" is enabled. Warnings are returned in "issues"; errors reject
// the rule with INVALID_ARGUMENT.
func (s *Service) RegisterRule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ruleRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalidRequest, err))
	}
	if req.Rule == nil {
		return nil, toStatus(fmt.Errorf("%w: rule is required", errInvalidRequest))
	}
	rule := *req.Rule
	if !hasField(in.GetFields()["rule"], "enabled") {
		rule.Enabled = true
	}
	if rule.ID == "" {
		rule.ID = types.NewRuleID()
	}

	issues := s.engine.ValidateRules([]types.Rule{rule})
	if rules.HasErrors(issues) {
		return nil, toStatus(&ruleset.ValidationError{Issues: issues})
	}

	if s.store != nil {
		if err := s.store.Save(ctx, rule); err != nil {
			return nil, toStatus(fmt.Errorf("%w: %v", errStorage, err))
		}
	}
	if err := s.engine.RegisterRule(rule); err != nil {
		return nil, toStatus(err)
	}
	s.metrics.SetRulesLoaded(len(s.engine.ListRules()))
	s.logger.Info("rule registered", "rule_id", rule.ID, "agent_id", auth.AgentIDFromContext(ctx))

	return respond(registerResponse{RuleID: rule.ID, Issues: issues})
}

// UnregisterRule removes {"ruleId": "..."} and reports {"removed": bool}.
func (s *Service) UnregisterRule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ruleRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalidRequest, err))
	}
	if req.RuleID == "" {
		return nil, toStatus(types.ErrEmptyRuleID)
	}

	if s.store != nil {
		if err := s.store.Delete(ctx, req.RuleID); err != nil {
			return nil, toStatus(fmt.Errorf("%w: %v", errStorage, err))
		}
	}
	removed := s.engine.UnregisterRule(req.RuleID)
	s.metrics.SetRulesLoaded(len(s.engine.ListRules()))
	if removed {
		s.logger.Info("rule unregistered", "rule_id", req.RuleID, "agent_id", auth.AgentIDFromContext(ctx))
	}
	return respond(map[string]any{"removed": removed})
}

type listRequest struct {
	ActiveOnly bool  `json:"activeOnly"`
	StrictMode *bool `json:"strictMode"`
}

// ListRules returns {"rules": [...]}; {"activeOnly": true} restricts the
// list to the rules evaluation would walk, in walk order. "strictMode"
// overrides the engine's strict setting for that filter.
func (s *Service) ListRules(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalidRequest, err))
	}
	list := s.engine.ListRules()
	if req.ActiveOnly {
		strict := s.engine.StrictMode()
		if req.StrictMode != nil {
			strict = *req.StrictMode
		}
		list = s.engine.ActiveRulesStrict(strict)
	}
	return respond(map[string]any{"rules": nonNil(list), "count": len(list)})
}

type rulesRequest struct {
	Rules []types.Rule `json:"rules"`
}

// analysisRules returns the request's rules, or the registered rules when
// the request names none.
func (s *Service) analysisRules(in *structpb.Struct) ([]types.Rule, error) {
	var req rulesRequest
	if err := decode(in, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	if req.Rules == nil {
		return s.engine.ListRules(), nil
	}
	return req.Rules, nil
}

// AnalyzeDependencies builds the dependency graph of {"rules": [...]} or
// of the registered rules.
func (s *Service) AnalyzeDependencies(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.analysisRules(in)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(depgraph.Analyze(list))
}

// ValidateDependencies reports dependency errors and warnings.
func (s *Service) ValidateDependencies(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.analysisRules(in)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(depgraph.Validate(list))
}

// ExecutionOrder returns {"ids": [...], "fallback": bool}.
func (s *Service) ExecutionOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.analysisRules(in)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(depgraph.ExecutionOrder(list))
}

type optimizeResponse struct {
	Rule   types.Rule               `json:"rule"`
	Result rules.OptimizationResult `json:"result"`
}

// OptimizeRule optimizes {"rule": {...}} or the registered {"ruleId": "..."}.
// The registered rule is not modified.
func (s *Service) OptimizeRule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ruleRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalidRequest, err))
	}

	var rule types.Rule
	switch {
	case req.Rule != nil:
		rule = *req.Rule
	case req.RuleID != "":
		r, err := s.engine.GetRule(req.RuleID)
		if err != nil {
			return nil, toStatus(err)
		}
		rule = r
	default:
		return nil, toStatus(fmt.Errorf("%w: rule or ruleId is required", errInvalidRequest))
	}

	optimized, res := s.engine.OptimizeRule(rule)
	return respond(optimizeResponse{Rule: optimized, Result: res})
}

// hasField reports whether v is an object carrying key.
func hasField(v *structpb.Value, key string) bool {
	_, ok := v.GetStructValue().GetFields()[key]
	return ok
}

func respond(v any) (*structpb.Struct, error) {
	out, err := encode(v)
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
