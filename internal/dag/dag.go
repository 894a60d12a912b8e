package dag

import (
	"github.com/vk/pipegrid/internal/config"
)

// Graph is a validated, acyclic view of a pipeline's main task nodes. It is
// safe for concurrent reads and never mutated after Build returns.
type Graph struct {
	names []string // declaration order
	index map[string]int
	specs map[string]*config.TaskNodeSpec
	preds map[string][]string
	succs map[string][]string
	order []string // topological order
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.names) }

// Nodes returns node names in declaration order.
func (g *Graph) Nodes() []string { return clone(g.names) }

// Has reports whether the graph contains the named node.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Spec returns the declaration of the named node.
func (g *Graph) Spec(name string) *config.TaskNodeSpec { return g.specs[name] }

// Predecessors returns the direct predecessors of a node in declaration order.
func (g *Graph) Predecessors(name string) []string { return clone(g.preds[name]) }

// Successors returns the direct successors of a node in declaration order.
func (g *Graph) Successors(name string) []string { return clone(g.succs[name]) }

// Roots returns the nodes with no predecessors: the initial ready set.
func (g *Graph) Roots() []string {
	var roots []string
	for _, n := range g.names {
		if len(g.preds[n]) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// TopologicalOrder returns every node such that each appears after all of its
// predecessors. Ties are broken by declaration order.
func (g *Graph) TopologicalOrder() []string { return clone(g.order) }

// Position returns the node's index in the topological order, or -1.
func (g *Graph) Position(name string) int {
	for i, n := range g.order {
		if n == name {
			return i
		}
	}
	return -1
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// detectCycles checks the graph for any cycles using a depth-first search with
// three marks. It returns a GraphError naming one member of the first cycle found.
func (g *Graph) detectCycles() error {
	const (
		unvisited = iota
		inProgress
		done
	)
	mark := make(map[string]int, len(g.names))

	var visit func(n string) error
	visit = func(n string) error {
		switch mark[n] {
		case done:
			return nil
		case inProgress:
			return &GraphError{Kind: ErrCycleDetected, Node: n}
		}
		mark[n] = inProgress
		for _, s := range g.succs[n] {
			if err := visit(s); err != nil {
				return err
			}
		}
		mark[n] = done
		return nil
	}

	for _, n := range g.names {
		if mark[n] == unvisited {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// topologicalSort computes Kahn's order, always releasing the lowest declared
// index first so the result is deterministic.
func (g *Graph) topologicalSort() []string {
	inDegree := make(map[string]int, len(g.names))
	for _, n := range g.names {
		inDegree[n] = len(g.preds[n])
	}

	ready := make([]bool, len(g.names))
	for i, n := range g.names {
		ready[i] = inDegree[n] == 0
	}

	order := make([]string, 0, len(g.names))
	for len(order) < len(g.names) {
		next := -1
		for i, ok := range ready {
			if ok {
				next = i
				break
			}
		}
		if next < 0 {
			break // unreachable for acyclic graphs
		}
		ready[next] = false
		n := g.names[next]
		order = append(order, n)
		for _, s := range g.succs[n] {
			inDegree[s]--
			if inDegree[s] == 0 {
				ready[g.index[s]] = true
			}
		}
	}
	return order
}
