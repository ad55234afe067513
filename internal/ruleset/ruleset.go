// internal/ruleset/ruleset.go
package ruleset

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/solatis/overseer/internal/celeval"
	"github.com/solatis/overseer/internal/rules"
	"github.com/solatis/overseer/internal/types"
	"gopkg.in/yaml.v3"
)

/*
 * Rule-set files.
 *
 * A rule set is a YAML (or JSON) document:
 *
 *   version: "1"
 *   evaluators:
 *     - name: target_prefix
 *       expression: ctx.action.target.startsWith(value)
 *   rules:
 *     - id: no-etc-writes
 *       name: Block writes under /etc
 *       category: security
 *       priority: 900
 *       riskWeight: 90
 *       conditions:
 *         - {field: action.type, operator: equals, value: file_write}
 *         - {operator: custom, evaluator: target_prefix, value: /etc/}
 *       actions:
 *         - {type: deny, message: Writes under /etc are not allowed}
 *
 * Rules default to enabled when the file omits the flag. Parse checks the
 * document's shape (schema, ids present and unique, evaluators named);
 * Install and Replace additionally compile evaluators and validate every
 * rule, refusing rule sets with error-severity issues.
 */

// EvaluatorDef declares a named CEL evaluator.
type EvaluatorDef struct {
	Name        string `yaml:"name" json:"name"`
	Expression  string `yaml:"expression" json:"expression"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// RuleSet is a parsed rule-set file.
type RuleSet struct {
	Version    string
	Evaluators []EvaluatorDef
	Rules      []types.Rule
}

type document struct {
	Version    string         `yaml:"version"`
	Evaluators []EvaluatorDef `yaml:"evaluators"`
	Rules      []ruleEntry    `yaml:"rules"`
}

// ruleEntry decodes a rule with Enabled defaulting to true.
type ruleEntry struct {
	types.Rule
}

func (r *ruleEntry) UnmarshalYAML(node *yaml.Node) error {
	type plain types.Rule
	p := plain{Enabled: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	r.Rule = types.Rule(p)
	return nil
}

// ValidationError reports error-severity issues found in a rule set.
type ValidationError struct {
	Issues []rules.Issue
}

func (e *ValidationError) Error() string {
	var errs []string
	for _, is := range e.Issues {
		if is.Severity == rules.SeverityError {
			errs = append(errs, fmt.Sprintf("%s: %s", is.RuleID, is.Message))
		}
	}
	return fmt.Sprintf("rule set has %d invalid definitions: %s", len(errs), strings.Join(errs, "; "))
}

// Parse decodes a rule-set document.
func Parse(data []byte) (*RuleSet, error) {
	if err := checkSchema(data); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}

	rs := &RuleSet{
		Version:    doc.Version,
		Evaluators: doc.Evaluators,
		Rules:      make([]types.Rule, len(doc.Rules)),
	}

	seen := make(map[types.RuleID]bool, len(doc.Rules))
	for i, entry := range doc.Rules {
		if entry.ID == "" {
			return nil, fmt.Errorf("rule %d: %w", i, types.ErrEmptyRuleID)
		}
		if seen[entry.ID] {
			return nil, fmt.Errorf("rule %q: %w", entry.ID, types.ErrDuplicateRuleID)
		}
		seen[entry.ID] = true
		rs.Rules[i] = entry.Rule
	}

	names := make(map[string]bool, len(doc.Evaluators))
	for i, ev := range doc.Evaluators {
		if ev.Name == "" {
			return nil, fmt.Errorf("evaluator %d: %w", i, types.ErrMissingEvaluator)
		}
		if names[ev.Name] {
			return nil, fmt.Errorf("evaluator %q declared twice", ev.Name)
		}
		names[ev.Name] = true
	}
	return rs, nil
}

// LoadFile reads and parses a rule-set file.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set %s: %w", path, err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Merge overlays rules onto the set: a rule whose id is already present
// replaces it in place, others are appended in order.
func (rs *RuleSet) Merge(rules []types.Rule) {
	index := make(map[types.RuleID]int, len(rs.Rules))
	for i, r := range rs.Rules {
		index[r.ID] = i
	}
	for _, r := range rules {
		if i, ok := index[r.ID]; ok {
			rs.Rules[i] = r
			continue
		}
		index[r.ID] = len(rs.Rules)
		rs.Rules = append(rs.Rules, r)
	}
}

// Install registers the rule set's evaluators and rules with e, leaving
// other registered rules in place.
func (rs *RuleSet) Install(e *rules.Engine) error {
	if err := rs.prepare(e); err != nil {
		return err
	}
	return e.RegisterRules(rs.Rules)
}

// Replace makes the rule set the engine's complete rule set and returns
// the ids of rules that were removed.
func (rs *RuleSet) Replace(e *rules.Engine) ([]types.RuleID, error) {
	if err := rs.prepare(e); err != nil {
		return nil, err
	}
	return e.ReplaceRules(rs.Rules)
}

// prepare compiles and registers evaluators, then validates rules against
// the engine's registry. Nothing is registered if an evaluator fails to
// compile.
func (rs *RuleSet) prepare(e *rules.Engine) error {
	compiled := make(map[string]*celeval.Evaluator, len(rs.Evaluators))
	var errs []error
	for _, def := range rs.Evaluators {
		ev, err := celeval.Compile(def.Expression)
		if err != nil {
			errs = append(errs, fmt.Errorf("evaluator %q: %w", def.Name, err))
			continue
		}
		compiled[def.Name] = ev
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	issues := rules.ValidateRules(rs.Rules, nil)
	if rules.HasErrors(issues) {
		return &ValidationError{Issues: issues}
	}

	for _, def := range rs.Evaluators {
		if err := e.RegisterCustomEvaluator(def.Name, compiled[def.Name]); err != nil {
			return fmt.Errorf("evaluator %q: %w", def.Name, err)
		}
	}
	return nil
}

// Issues validates the rule set against e's evaluator registry plus the
// evaluators the rule set itself declares.
func (rs *RuleSet) Issues(e *rules.Engine) []rules.Issue {
	declared := make(map[string]bool, len(rs.Evaluators))
	for _, def := range rs.Evaluators {
		declared[def.Name] = true
	}
	for _, name := range e.EvaluatorNames() {
		declared[name] = true
	}

	out := rules.ValidateRules(rs.Rules, nil)
	for _, r := range rs.Rules {
		for i, c := range r.Conditions {
			if c.Operator != types.OpCustom {
				continue
			}
			name := rules.EvaluatorName(c)
			if name != "" && !declared[name] {
				out = append(out, rules.Issue{
					RuleID:    r.ID,
					Code:      rules.IssueUnregisteredEvaluator,
					Severity:  rules.SeverityWarning,
					Condition: i,
					Message:   fmt.Sprintf("%v: %q", types.ErrEvaluatorNotFound, name),
				})
			}
		}
	}
	return out
}
