// internal/depgraph/order.go
package depgraph

import (
	"sort"

	"github.com/solatis/overseer/internal/types"
)

/*
 * Execution ordering.
 *
 * Without cycles, rules are ordered by depth ascending. Every dependency
 * has a strictly smaller depth than its dependents, so this is a
 * topological order; rules at the same depth have no path between them and
 * are ordered by priority descending, then input order.
 *
 * With cycles no topological order exists: the resolver orders every rule
 * by priority descending (input order on ties) and sets Fallback.
 */

// Ordering is a resolved rule execution order.
type Ordering struct {
	IDs      []types.RuleID `json:"ids"`
	Fallback bool           `json:"fallback"` // priority order used because of cycles
}

// ExecutionOrder resolves the execution order of rules.
func ExecutionOrder(rules []types.Rule) Ordering {
	return Analyze(rules).ExecutionOrder()
}

// ExecutionOrder resolves the execution order of the analysed rule set.
func (g *Graph) ExecutionOrder() Ordering {
	ids := append([]types.RuleID{}, g.Order...)
	fallback := g.HasCircularDependencies

	sort.SliceStable(ids, func(i, j int) bool {
		a, b := g.Nodes[ids[i]], g.Nodes[ids[j]]
		if !fallback && a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		return a.Priority > b.Priority
	})
	return Ordering{IDs: ids, Fallback: fallback}
}
