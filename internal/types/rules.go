// internal/types/rules.go
package types

/*
 * Domain types for rule definitions.
 *
 * Provides Rule, Condition and Action structures used by internal/rules for
 * evaluation and by internal/depgraph for rule-set analysis. These types are
 * wire-format agnostic; yaml/json tags describe the rule-set file format.
 *
 * Key types:
 *   - Rule: Complete rule definition (conditions, logic, actions, weights,
 *     lifecycle metadata, declared relationships)
 *   - Condition: Single predicate over a dot-separated field path
 *   - Action: Effect applied when the rule matches
 *   - ProposedAction: The agent action under judgement
 *
 * Rules are immutable once registered: re-registering an id replaces it.
 */

// Operator names a condition comparison.
type Operator string

const (
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "not_equals"
	OpContains     Operator = "contains"
	OpNotContains  Operator = "not_contains"
	OpGreaterThan  Operator = "greater_than"
	OpLessThan     Operator = "less_than"
	OpIn           Operator = "in"
	OpNotIn        Operator = "not_in"
	OpMatchesRegex Operator = "matches_regex"
	OpExists       Operator = "exists"
	OpNotExists    Operator = "not_exists"
	OpCustom       Operator = "custom"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpGreaterThan,
		OpLessThan, OpIn, OpNotIn, OpMatchesRegex, OpExists, OpNotExists, OpCustom:
		return true
	default:
		return false
	}
}

// Logic is the condition-combination mode of a rule.
type Logic string

const (
	LogicAll Logic = "all"
	LogicAny Logic = "any"
)

// ActionType names the effect of a matched rule.
type ActionType string

const (
	ActionAllow           ActionType = "allow"
	ActionDeny            ActionType = "deny"
	ActionRequireApproval ActionType = "require_approval"
	ActionWarn            ActionType = "warn"
	ActionLog             ActionType = "log"
	ActionRateLimit       ActionType = "rate_limit"
	ActionEscalate        ActionType = "escalate"
	ActionNotify          ActionType = "notify"
	ActionTransform       ActionType = "transform"
)

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionAllow, ActionDeny, ActionRequireApproval, ActionWarn, ActionLog,
		ActionRateLimit, ActionEscalate, ActionNotify, ActionTransform:
		return true
	default:
		return false
	}
}

// Category tags a rule for reporting and recommendation lookup.
type Category string

const (
	CategorySecurity    Category = "security"
	CategoryCompliance  Category = "compliance"
	CategoryOperational Category = "operational"
	CategoryQuality     Category = "quality"
	CategoryCost        Category = "cost"
	CategoryCustom      Category = "custom"
)

// Condition represents a single predicate in a rule.
type Condition struct {
	Field     string   `json:"field" yaml:"field"`                             // dot-separated path into the context
	Operator  Operator `json:"operator" yaml:"operator"`                       // comparison to apply
	Value     any      `json:"value,omitempty" yaml:"value,omitempty"`         // list for in/not_in, pattern for matches_regex
	Evaluator string   `json:"evaluator,omitempty" yaml:"evaluator,omitempty"` // custom evaluator name (custom only)
}

// Action represents one effect of a matched rule.
type Action struct {
	Type    ActionType     `json:"type" yaml:"type"`
	Message string         `json:"message,omitempty" yaml:"message,omitempty"`
	Params  map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Rule represents a complete rule definition.
type Rule struct {
	ID          RuleID      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Category    Category    `json:"category" yaml:"category"`
	Enabled     bool        `json:"enabled" yaml:"enabled"`
	Priority    int         `json:"priority" yaml:"priority"` // 0-1000, higher first
	Conditions  []Condition `json:"conditions" yaml:"conditions"`
	Logic       Logic       `json:"logic,omitempty" yaml:"logic,omitempty"`
	Actions     []Action    `json:"actions" yaml:"actions"`
	RiskWeight  int         `json:"riskWeight" yaml:"riskWeight"` // 0-100
	Tags        []string    `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Lifecycle metadata
	Deprecated bool   `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	ReplacedBy RuleID `json:"replacedBy,omitempty" yaml:"replacedBy,omitempty"`
	MinVersion string `json:"minVersion,omitempty" yaml:"minVersion,omitempty"` // semver

	// Declared relationships
	DependsOn     []RuleID `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	ConflictsWith []RuleID `json:"conflictsWith,omitempty" yaml:"conflictsWith,omitempty"`
	RelatedRules  []RuleID `json:"relatedRules,omitempty" yaml:"relatedRules,omitempty"`
}

// EffectiveLogic returns the rule's logic, defaulting to LogicAll.
func (r *Rule) EffectiveLogic() Logic {
	if r.Logic == "" {
		return LogicAll
	}
	return r.Logic
}

// ProposedAction is the agent action submitted for a decision.
type ProposedAction struct {
	ID     ActionID       `json:"id,omitempty" yaml:"id,omitempty"`
	Type   string         `json:"type" yaml:"type"`
	Tool   string         `json:"tool,omitempty" yaml:"tool,omitempty"`
	Target string         `json:"target,omitempty" yaml:"target,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Fields renders the action as a map for placement under the "action"
// context key. Empty optional fields are omitted so exists/not_exists see them
// as absent.
func (a ProposedAction) Fields() map[string]any {
	m := map[string]any{
		"id":   string(a.ID),
		"type": a.Type,
	}
	if a.Tool != "" {
		m["tool"] = a.Tool
	}
	if a.Target != "" {
		m["target"] = a.Target
	}
	if a.Params != nil {
		m["params"] = a.Params
	}
	return m
}
