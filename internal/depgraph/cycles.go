// internal/depgraph/cycles.go
package depgraph

import "github.com/solatis/overseer/internal/types"

/*
 * Cycle enumeration.
 *
 * Johnson's algorithm over the dependency edges. Strongly connected
 * components are computed once (Tarjan); a rule alone in its component
 * and without a self-edge cannot be on a cycle and is never searched, so
 * an acyclic rule set costs one linear pass.
 *
 * For every remaining rule s, in input order, the circuit search walks
 * only rules in s's component at input position >= s. Each elementary
 * cycle is therefore found exactly once, from its earliest member, and is
 * reported starting there. Blocked rules and their B-lists keep every
 * search linear between two reported cycles.
 *
 * Both passes use explicit stacks so deep or adversarial dependency chains
 * cannot exhaust the goroutine stack. Search never stops at the first
 * cycle. A rule depending on itself is reported as a one-element cycle.
 */

// FindCycles returns every elementary dependency cycle among rules.
func FindCycles(rules []types.Rule) [][]types.RuleID {
	return Analyze(rules).Cycles
}

type dfsFrame struct {
	id    types.RuleID
	next  int  // index of the next dependency edge to follow
	found bool // a cycle was closed below this frame
}

func findCycles(g *Graph) [][]types.RuleID {
	index := make(map[types.RuleID]int, len(g.Order))
	for i, id := range g.Order {
		index[id] = i
	}
	comp, size := components(g)

	cycles := [][]types.RuleID{}
	for start, s := range g.Order {
		if size[comp[s]] == 1 && !contains(g.Nodes[s].DependsOn, s) {
			continue
		}
		within := func(id types.RuleID) bool {
			return comp[id] == comp[s] && index[id] >= start
		}
		cycles = circuits(g, s, within, cycles)
	}
	return cycles
}

// circuits appends every elementary cycle through s that stays within the
// allowed rules.
func circuits(g *Graph, s types.RuleID, within func(types.RuleID) bool, out [][]types.RuleID) [][]types.RuleID {
	blocked := map[types.RuleID]bool{s: true}
	blockers := make(map[types.RuleID]map[types.RuleID]bool)

	unblock := func(u types.RuleID) {
		pending := []types.RuleID{u}
		for len(pending) > 0 {
			w := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			if !blocked[w] {
				continue
			}
			blocked[w] = false
			for x := range blockers[w] {
				pending = append(pending, x)
			}
			delete(blockers, w)
		}
	}

	stack := []dfsFrame{{id: s}}
	path := []types.RuleID{s}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		deps := g.Nodes[top.id].DependsOn

		if top.next < len(deps) {
			w := deps[top.next]
			top.next++
			switch {
			case !within(w):
			case w == s:
				out = append(out, append([]types.RuleID(nil), path...))
				top.found = true
			case !blocked[w]:
				blocked[w] = true
				stack = append(stack, dfsFrame{id: w})
				path = append(path, w)
			}
			continue
		}

		if top.found {
			unblock(top.id)
		} else {
			for _, w := range deps {
				if !within(w) {
					continue
				}
				if blockers[w] == nil {
					blockers[w] = make(map[types.RuleID]bool)
				}
				blockers[w][top.id] = true
			}
		}
		found := top.found
		stack = stack[:len(stack)-1]
		path = path[:len(path)-1]
		if found && len(stack) > 0 {
			stack[len(stack)-1].found = true
		}
	}
	return out
}

// components labels each rule with its strongly connected component
// (iterative Tarjan) and returns the size of every component.
func components(g *Graph) (map[types.RuleID]int, []int) {
	var (
		counter int
		order   = make(map[types.RuleID]int, len(g.Order))
		low     = make(map[types.RuleID]int, len(g.Order))
		onStack = make(map[types.RuleID]bool)
		pending []types.RuleID
		comp    = make(map[types.RuleID]int, len(g.Order))
		sizes   []int
	)

	visit := func(id types.RuleID, frames []dfsFrame) []dfsFrame {
		order[id] = counter
		low[id] = counter
		counter++
		pending = append(pending, id)
		onStack[id] = true
		return append(frames, dfsFrame{id: id})
	}

	for _, root := range g.Order {
		if _, seen := order[root]; seen {
			continue
		}
		frames := visit(root, nil)
		for len(frames) > 0 {
			top := &frames[len(frames)-1]
			deps := g.Nodes[top.id].DependsOn
			if top.next < len(deps) {
				w := deps[top.next]
				top.next++
				if _, seen := order[w]; !seen {
					frames = visit(w, frames)
				} else if onStack[w] && order[w] < low[top.id] {
					low[top.id] = order[w]
				}
				continue
			}

			id := top.id
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].id
				if low[id] < low[parent] {
					low[parent] = low[id]
				}
			}
			if low[id] != order[id] {
				continue
			}
			n := 0
			for {
				w := pending[len(pending)-1]
				pending = pending[:len(pending)-1]
				onStack[w] = false
				comp[w] = len(sizes)
				n++
				if w == id {
					break
				}
			}
			sizes = append(sizes, n)
		}
	}
	return comp, sizes
}

// InCycle reports whether id is a member of any recorded cycle.
func (g *Graph) InCycle(id types.RuleID) bool {
	for _, c := range g.Cycles {
		for _, member := range c {
			if member == id {
				return true
			}
		}
	}
	return false
}
