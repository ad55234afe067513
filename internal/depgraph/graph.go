// internal/depgraph/graph.go
package depgraph

import (
	"github.com/solatis/overseer/internal/types"
)

/*
 * Rule dependency graph.
 *
 * Analyze builds a read-only snapshot from a rule slice: one node per rule,
 * dependency edges for every dependsOn target present in the input, and the
 * inverse dependent edges. References to rules absent from the input become
 * Orphans; no phantom nodes are created for them.
 *
 * Depth is the length of the longest dependency chain ending at a rule
 * (0 for rules without dependencies). It is computed by peeling rules whose
 * dependencies are all settled, so rules that sit on a cycle, or depend on
 * one transitively, never settle and get DepthUnbounded.
 *
 * Conflicts are recorded once per unordered pair and only when both rules
 * exist and are enabled.
 *
 * The graph is a pure function of its input and safe to build concurrently
 * with evaluation, as long as the slice is not mutated meanwhile.
 */

// DepthUnbounded marks rules on or downstream of a dependency cycle.
const DepthUnbounded = -1

// Node is one rule's position in the dependency graph.
type Node struct {
	ID         types.RuleID   `json:"id"`
	Name       string         `json:"name"`
	Enabled    bool           `json:"enabled"`
	Deprecated bool           `json:"deprecated"`
	Priority   int            `json:"priority"`
	DependsOn  []types.RuleID `json:"dependsOn"`  // existing targets only, declaration order
	Dependents []types.RuleID `json:"dependents"` // rules listing this one in dependsOn
	Conflicts  []types.RuleID `json:"conflicts"`
	Related    []types.RuleID `json:"related"`
	Depth      int            `json:"depth"`
}

// Conflict is a pair of enabled rules that declare a conflict.
// A is the rule first seen declaring it.
type Conflict struct {
	A types.RuleID `json:"a"`
	B types.RuleID `json:"b"`
}

// Orphan is a dependsOn reference to a rule missing from the input.
type Orphan struct {
	RuleID  types.RuleID `json:"ruleId"`
	Missing types.RuleID `json:"missing"`
}

// Graph is the dependency analysis of one rule set.
type Graph struct {
	Nodes                   map[types.RuleID]*Node `json:"nodes"`
	Order                   []types.RuleID         `json:"order"` // input order
	HasCircularDependencies bool                   `json:"hasCircularDependencies"`
	Cycles                  [][]types.RuleID       `json:"cycles"`
	Conflicts               []Conflict             `json:"conflicts"`
	Orphans                 []Orphan               `json:"orphans"`
}

// Analyze builds the dependency graph of rules.
// A repeated id replaces the earlier definition but keeps its position.
func Analyze(rules []types.Rule) *Graph {
	g := &Graph{
		Nodes:     make(map[types.RuleID]*Node, len(rules)),
		Order:     make([]types.RuleID, 0, len(rules)),
		Cycles:    [][]types.RuleID{},
		Conflicts: []Conflict{},
		Orphans:   []Orphan{},
	}

	defs := make(map[types.RuleID]*types.Rule, len(rules))
	for i := range rules {
		r := &rules[i]
		if _, ok := defs[r.ID]; !ok {
			g.Order = append(g.Order, r.ID)
		}
		defs[r.ID] = r
	}

	for _, id := range g.Order {
		r := defs[id]
		g.Nodes[id] = &Node{
			ID:         id,
			Name:       r.Name,
			Enabled:    r.Enabled,
			Deprecated: r.Deprecated,
			Priority:   r.Priority,
			DependsOn:  []types.RuleID{},
			Dependents: []types.RuleID{},
			Conflicts:  []types.RuleID{},
			Related:    append([]types.RuleID{}, r.RelatedRules...),
		}
	}

	g.linkDependencies(defs)
	g.linkConflicts(defs)
	g.computeDepths()

	g.Cycles = findCycles(g)
	g.HasCircularDependencies = len(g.Cycles) > 0
	return g
}

// linkDependencies adds dependency and dependent edges, recording orphans.
func (g *Graph) linkDependencies(defs map[types.RuleID]*types.Rule) {
	for _, id := range g.Order {
		node := g.Nodes[id]
		linked := make(map[types.RuleID]bool)
		for _, dep := range defs[id].DependsOn {
			target, ok := g.Nodes[dep]
			if !ok {
				g.Orphans = append(g.Orphans, Orphan{RuleID: id, Missing: dep})
				continue
			}
			if linked[dep] {
				continue
			}
			linked[dep] = true
			node.DependsOn = append(node.DependsOn, dep)
			target.Dependents = append(target.Dependents, id)
		}
	}
}

// linkConflicts records each enabled conflicting pair once.
func (g *Graph) linkConflicts(defs map[types.RuleID]*types.Rule) {
	type pair struct{ a, b types.RuleID }
	seen := make(map[pair]bool)

	for _, id := range g.Order {
		node := g.Nodes[id]
		for _, other := range defs[id].ConflictsWith {
			target, ok := g.Nodes[other]
			if !ok || other == id {
				continue
			}
			if !contains(node.Conflicts, other) {
				node.Conflicts = append(node.Conflicts, other)
			}
			if !contains(target.Conflicts, id) {
				target.Conflicts = append(target.Conflicts, id)
			}
			if !node.Enabled || !target.Enabled {
				continue
			}
			if seen[pair{id, other}] || seen[pair{other, id}] {
				continue
			}
			seen[pair{id, other}] = true
			g.Conflicts = append(g.Conflicts, Conflict{A: id, B: other})
		}
	}
}

// computeDepths assigns longest-chain depths without recursion.
func (g *Graph) computeDepths() {
	pending := make(map[types.RuleID]int, len(g.Nodes))
	queue := make([]types.RuleID, 0, len(g.Nodes))
	for _, id := range g.Order {
		n := g.Nodes[id]
		n.Depth = 0
		pending[id] = len(n.DependsOn)
		if pending[id] == 0 {
			queue = append(queue, id)
		}
	}

	settled := make(map[types.RuleID]bool, len(g.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		settled[id] = true
		n := g.Nodes[id]
		for _, dep := range n.Dependents {
			d := g.Nodes[dep]
			if n.Depth+1 > d.Depth {
				d.Depth = n.Depth + 1
			}
			pending[dep]--
			if pending[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	for _, id := range g.Order {
		if !settled[id] {
			g.Nodes[id].Depth = DepthUnbounded
		}
	}
}

// MaxDepth returns the deepest bounded chain in the graph.
func (g *Graph) MaxDepth() int {
	deepest := 0
	for _, n := range g.Nodes {
		if n.Depth > deepest {
			deepest = n.Depth
		}
	}
	return deepest
}

func contains(ids []types.RuleID, id types.RuleID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
