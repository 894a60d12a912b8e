package dag

import (
	"errors"
	"fmt"

	"github.com/vk/pipegrid/internal/config"
)

var (
	ErrUnknownPredecessor = errors.New("unknown predecessor")
	ErrCycleDetected      = errors.New("cycle detected")
	ErrDuplicateNode      = errors.New("duplicate node")
	ErrUnknownWorkspace   = errors.New("unknown workspace")
	ErrEmptyNodeName      = errors.New("empty node name")
)

// GraphError describes why a definition could not be turned into a graph.
// It matches both its Kind and config.ErrConfiguration with errors.Is.
type GraphError struct {
	Kind error
	// Node is the offending node; for cycles, one member of the cycle.
	Node string
	// Ref is the dangling reference, when there is one.
	Ref string
}

func (e *GraphError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrCycleDetected):
		return fmt.Sprintf("cycle detected involving node '%s'", e.Node)
	case e.Ref != "":
		return fmt.Sprintf("node '%s': %v '%s'", e.Node, e.Kind, e.Ref)
	default:
		return fmt.Sprintf("node '%s': %v", e.Node, e.Kind)
	}
}

func (e *GraphError) Unwrap() []error {
	return []error{e.Kind, config.ErrConfiguration}
}
