package dag

import (
	"github.com/vk/pipegrid/internal/config"
)

// Build validates the main task nodes of def and returns the resulting graph.
//
// It rejects duplicate node names (including a finalizer sharing a task's
// name), predecessor references that do not resolve, workspace mappings that
// name undeclared pipeline workspaces, and cycles of any length.
func Build(def *config.Definition) (*Graph, error) {
	g := &Graph{
		index: make(map[string]int, len(def.Tasks)),
		specs: make(map[string]*config.TaskNodeSpec, len(def.Tasks)),
		preds: make(map[string][]string, len(def.Tasks)),
		succs: make(map[string][]string, len(def.Tasks)),
	}

	// First pass: register nodes.
	for _, t := range def.Tasks {
		if t.Name == "" {
			return nil, &GraphError{Kind: ErrEmptyNodeName}
		}
		if _, exists := g.index[t.Name]; exists {
			return nil, &GraphError{Kind: ErrDuplicateNode, Node: t.Name}
		}
		g.index[t.Name] = len(g.names)
		g.names = append(g.names, t.Name)
		g.specs[t.Name] = t
	}
	if def.Finally != nil {
		if _, exists := g.index[def.Finally.Name]; exists {
			return nil, &GraphError{Kind: ErrDuplicateNode, Node: def.Finally.Name}
		}
		if err := checkWorkspaces(def, def.Finally); err != nil {
			return nil, err
		}
	}

	// Second pass: link predecessors.
	for _, t := range def.Tasks {
		seen := make(map[string]struct{}, len(t.RunAfter))
		for _, p := range t.RunAfter {
			if _, ok := g.index[p]; !ok {
				return nil, &GraphError{Kind: ErrUnknownPredecessor, Node: t.Name, Ref: p}
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			g.preds[t.Name] = append(g.preds[t.Name], p)
		}
		if err := checkWorkspaces(def, t); err != nil {
			return nil, err
		}
	}

	// Successor lists follow declaration order of the successor.
	for _, n := range g.names {
		for _, p := range g.preds[n] {
			g.succs[p] = append(g.succs[p], n)
		}
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	g.order = g.topologicalSort()
	return g, nil
}

func checkWorkspaces(def *config.Definition, t *config.TaskNodeSpec) error {
	for _, local := range sortedKeys(t.Workspaces) {
		if !def.HasWorkspace(t.Workspaces[local]) {
			return &GraphError{Kind: ErrUnknownWorkspace, Node: t.Name, Ref: t.Workspaces[local]}
		}
	}
	return nil
}
