// internal/rules/engine.go
package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/semver/v3"
	"github.com/solatis/overseer/internal/types"
)

/*
 * Engine facade.
 *
 * Engine wires a Store, an evaluator Registry and an Evaluator behind one
 * object that the service layer and the CLI share. Each Engine owns its
 * caches; two engines in one process never observe each other's rules.
 *
 * Mutations go through the Store, which invalidates caches. Registering a
 * custom evaluator only drops the resolved-evaluator cache.
 */

// Engine evaluates proposed actions against registered rules.
// Safe for concurrent use.
type Engine struct {
	store     *Store
	registry  *Registry
	evaluator *Evaluator
	processor *Processor
	strict    bool
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions) error

type engineOptions struct {
	logger  *slog.Logger
	strict  bool
	version *semver.Version
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) error {
		o.logger = l
		return nil
	}
}

// WithStrictMode excludes deprecated rules from evaluation.
func WithStrictMode(strict bool) Option {
	return func(o *engineOptions) error {
		o.strict = strict
		return nil
	}
}

// WithEngineVersion enables MinVersion gating against version.
// An empty version disables gating.
func WithEngineVersion(version string) Option {
	return func(o *engineOptions) error {
		if version == "" {
			o.version = nil
			return nil
		}
		v, err := semver.NewVersion(version)
		if err != nil {
			return fmt.Errorf("engine version %q: %w", version, err)
		}
		o.version = v
		return nil
	}
}

// NewEngine creates a rules engine instance.
func NewEngine(opts ...Option) (*Engine, error) {
	o := engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	store := NewStore()
	store.SetVersion(o.version)
	registry := NewRegistry()
	evaluator := NewEvaluator(store.Caches(), registry, o.logger)

	return &Engine{
		store:     store,
		registry:  registry,
		evaluator: evaluator,
		processor: NewProcessor(store, evaluator, o.strict, o.logger),
		strict:    o.strict,
		logger:    o.logger.With("component", "rules.engine"),
	}, nil
}

// StrictMode reports whether deprecated rules are excluded.
func (e *Engine) StrictMode() bool {
	return e.strict
}

// EvaluateAction decides action against the active rules.
// The only error is ctx's.
func (e *Engine) EvaluateAction(ctx context.Context, action types.ProposedAction, evalCtx types.Context) (*types.EvaluationResult, error) {
	return e.processor.Process(ctx, action, evalCtx)
}

// RegisterRule upserts one rule. Rules with an empty id are rejected.
func (e *Engine) RegisterRule(rule types.Rule) error {
	if rule.ID == "" {
		return types.ErrEmptyRuleID
	}
	e.store.Register(rule)
	e.logger.Debug("rule registered", "rule_id", rule.ID, "priority", rule.Priority)
	return nil
}

// RegisterRules upserts rules as one batch. Nothing is registered if any
// rule has an empty id.
func (e *Engine) RegisterRules(rules []types.Rule) error {
	for i := range rules {
		if rules[i].ID == "" {
			return fmt.Errorf("rule %d: %w", i, types.ErrEmptyRuleID)
		}
	}
	e.store.RegisterMany(rules)
	e.logger.Debug("rules registered", "count", len(rules))
	return nil
}

// UnregisterRule removes id. Returns false if id was not registered.
func (e *Engine) UnregisterRule(id types.RuleID) bool {
	removed := e.store.Unregister(id)
	if removed {
		e.logger.Debug("rule unregistered", "rule_id", id)
	}
	return removed
}

// ReplaceRules makes rules the complete rule set: every given rule is
// upserted and every registered rule not among them is removed, in one
// step. Nothing changes if any rule has an empty id. Returns the ids that
// were removed.
func (e *Engine) ReplaceRules(rules []types.Rule) ([]types.RuleID, error) {
	for i := range rules {
		if rules[i].ID == "" {
			return nil, fmt.Errorf("rule %d: %w", i, types.ErrEmptyRuleID)
		}
	}
	removed := e.store.Replace(rules)
	e.logger.Debug("rules replaced", "count", len(rules), "removed", len(removed))
	return removed, nil
}

// GetRule returns the rule registered under id.
func (e *Engine) GetRule(id types.RuleID) (types.Rule, error) {
	r, ok := e.store.Get(id)
	if !ok {
		return types.Rule{}, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	return r, nil
}

// ListRules returns every registered rule in insertion order.
func (e *Engine) ListRules() []types.Rule {
	return e.store.List()
}

// ActiveRules returns the rules evaluation would walk, in walk order.
func (e *Engine) ActiveRules() []types.Rule {
	return e.store.Active(e.strict)
}

// ActiveRulesStrict is ActiveRules with strict mode given by the caller
// rather than the engine's configuration.
func (e *Engine) ActiveRulesStrict(strict bool) []types.Rule {
	return e.store.Active(strict)
}

// RegisterCustomEvaluator binds name for custom conditions.
func (e *Engine) RegisterCustomEvaluator(name string, ev CustomEvaluator) error {
	if name == "" {
		return types.ErrMissingEvaluator
	}
	e.registry.Register(name, ev)
	e.store.Caches().InvalidateEvaluators()
	e.logger.Debug("custom evaluator registered", "evaluator", name)
	return nil
}

// EvaluatorNames lists registered custom evaluators.
func (e *Engine) EvaluatorNames() []string {
	return e.registry.Names()
}

// ValidateRules checks rules against this engine's evaluator registry.
func (e *Engine) ValidateRules(rules []types.Rule) []Issue {
	return ValidateRules(rules, e.registry)
}

// OptimizeRule returns an optimized copy of rule. The registered rule is
// not modified.
func (e *Engine) OptimizeRule(rule types.Rule) (types.Rule, OptimizationResult) {
	return OptimizeRule(rule)
}

// OptimizeConditions optimizes a bare condition list.
func (e *Engine) OptimizeConditions(conds []types.Condition) OptimizationResult {
	return OptimizeConditions(conds)
}

// CacheStats reports the sizes of this engine's caches.
func (e *Engine) CacheStats() CacheStats {
	return e.store.Caches().Stats()
}
