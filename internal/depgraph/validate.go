// internal/depgraph/validate.go
package depgraph

import (
	"fmt"
	"strings"

	"github.com/solatis/overseer/internal/types"
)

// MaxRecommendedDepth is the longest dependency chain accepted without a
// deep_dependency_chain warning.
const MaxRecommendedDepth = 5

// Finding codes reported by Validate.
const (
	CodeMissingDependency  = "missing_dependency"
	CodeCircularDependency = "circular_dependency"
	CodeSelfDependency     = "self_dependency"
	CodeConflict           = "conflict"

	CodeDisabledDependency = "disabled_dependency"
	CodeDeepChain          = "deep_dependency_chain"
	CodeUnusedDependency   = "unused_dependency"
)

// Finding is one structural problem in a rule set.
type Finding struct {
	Code    string         `json:"code"`
	RuleID  types.RuleID   `json:"ruleId,omitempty"`
	Related []types.RuleID `json:"related,omitempty"`
	Message string         `json:"message"`
}

// ValidationResult groups findings by severity. Valid is false when any
// error was found; warnings never invalidate a rule set.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

// Validate checks the dependency structure of rules.
func Validate(rules []types.Rule) ValidationResult {
	return Analyze(rules).Validate()
}

// Validate reports the structural findings of the analysed rule set.
//
// Errors: missing_dependency (per orphan), self_dependency, circular_dependency
// (cycles of two or more rules), conflict (per enabled pair).
// Warnings: disabled_dependency (enabled rule depends on a disabled one),
// deep_dependency_chain (depth above MaxRecommendedDepth), unused_dependency
// (enabled rule depends on a deprecated one, which strict mode never runs).
func (g *Graph) Validate() ValidationResult {
	res := ValidationResult{Errors: []Finding{}, Warnings: []Finding{}}

	for _, o := range g.Orphans {
		res.Errors = append(res.Errors, Finding{
			Code:    CodeMissingDependency,
			RuleID:  o.RuleID,
			Related: []types.RuleID{o.Missing},
			Message: fmt.Sprintf("rule %q depends on missing rule %q", o.RuleID, o.Missing),
		})
	}

	for _, id := range g.Order {
		if contains(g.Nodes[id].DependsOn, id) {
			res.Errors = append(res.Errors, Finding{
				Code:    CodeSelfDependency,
				RuleID:  id,
				Message: fmt.Sprintf("rule %q depends on itself", id),
			})
		}
	}

	for _, c := range g.Cycles {
		if len(c) < 2 {
			continue
		}
		res.Errors = append(res.Errors, Finding{
			Code:    CodeCircularDependency,
			RuleID:  c[0],
			Related: append([]types.RuleID{}, c...),
			Message: "circular dependency: " + cyclePath(c),
		})
	}

	for _, c := range g.Conflicts {
		res.Errors = append(res.Errors, Finding{
			Code:    CodeConflict,
			RuleID:  c.A,
			Related: []types.RuleID{c.B},
			Message: fmt.Sprintf("enabled rules %q and %q conflict", c.A, c.B),
		})
	}

	for _, id := range g.Order {
		n := g.Nodes[id]
		if n.Depth > MaxRecommendedDepth {
			res.Warnings = append(res.Warnings, Finding{
				Code:    CodeDeepChain,
				RuleID:  id,
				Message: fmt.Sprintf("rule %q has dependency depth %d (recommended max %d)", id, n.Depth, MaxRecommendedDepth),
			})
		}
		if !n.Enabled {
			continue
		}
		for _, dep := range n.DependsOn {
			target := g.Nodes[dep]
			if dep == id {
				continue
			}
			if !target.Enabled {
				res.Warnings = append(res.Warnings, Finding{
					Code:    CodeDisabledDependency,
					RuleID:  id,
					Related: []types.RuleID{dep},
					Message: fmt.Sprintf("enabled rule %q depends on disabled rule %q", id, dep),
				})
			}
			if target.Deprecated {
				res.Warnings = append(res.Warnings, Finding{
					Code:    CodeUnusedDependency,
					RuleID:  id,
					Related: []types.RuleID{dep},
					Message: fmt.Sprintf("rule %q depends on deprecated rule %q", id, dep),
				})
			}
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// cyclePath renders a cycle as "a -> b -> a".
func cyclePath(c []types.RuleID) string {
	parts := make([]string, 0, len(c)+1)
	for _, id := range c {
		parts = append(parts, string(id))
	}
	parts = append(parts, string(c[0]))
	return strings.Join(parts, " -> ")
}
