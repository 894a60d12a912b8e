package scheduler

import (
	"errors"
	"fmt"
)

// ErrNodeExecution marks a failure reported by, or raised while dispatching,
// a task implementation.
var ErrNodeExecution = errors.New("node execution failed")

// ErrUpstreamFailed is the cause recorded on nodes skipped because a
// predecessor did not succeed.
var ErrUpstreamFailed = errors.New("upstream node did not succeed")

// ErrRunCancelled is the cause recorded on nodes skipped because the run was
// cancelled before they started.
var ErrRunCancelled = errors.New("run cancelled")

// NodeError wraps the error a node failed with.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node '%s': %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() []error {
	return []error{ErrNodeExecution, e.Err}
}

// SkipError records why a node was skipped.
type SkipError struct {
	Node string
	// Cause is the failed predecessor, or empty when the run was cancelled.
	Cause string
}

func (e *SkipError) Error() string {
	if e.Cause == "" {
		return fmt.Sprintf("node '%s' skipped: %v", e.Node, ErrRunCancelled)
	}
	return fmt.Sprintf("node '%s' skipped: upstream node '%s' did not succeed", e.Node, e.Cause)
}

func (e *SkipError) Unwrap() error {
	if e.Cause == "" {
		return ErrRunCancelled
	}
	return ErrUpstreamFailed
}
