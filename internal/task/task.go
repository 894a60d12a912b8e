package task

import (
	"context"
	"fmt"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/params"
	"github.com/vk/pipegrid/internal/workspace"
)

// Task is an external task implementation. Run returns nil on success.
// Implementations must honour ctx cancellation.
type Task interface {
	Run(ctx context.Context, inv *Invocation) error
}

// Func adapts an ordinary function to the Task interface.
type Func func(ctx context.Context, inv *Invocation) error

func (f Func) Run(ctx context.Context, inv *Invocation) error { return f(ctx, inv) }

// ProgressFunc receives progress messages streamed by a running task.
type ProgressFunc func(node, message string)

// Invocation is everything a task receives for one execution of a node.
type Invocation struct {
	RunID      string
	Pipeline   string
	Node       string
	Ref        config.TaskRef
	Params     params.Resolved
	Workspaces workspace.Bound

	progress ProgressFunc
}

// NewInvocation builds an invocation. progress may be nil.
func NewInvocation(runID, pipeline string, spec *config.TaskNodeSpec, p params.Resolved, ws workspace.Bound, progress ProgressFunc) *Invocation {
	return &Invocation{
		RunID:      runID,
		Pipeline:   pipeline,
		Node:       spec.Name,
		Ref:        spec.Ref,
		Params:     p,
		Workspaces: ws,
		progress:   progress,
	}
}

// Progressf streams a progress message for this node.
func (inv *Invocation) Progressf(format string, args ...any) {
	if inv.progress == nil {
		return
	}
	inv.progress(inv.Node, fmt.Sprintf(format, args...))
}

// LocalDir returns the directory bound to a workspace slot. It fails when the
// slot is not bound or is bound to a non-local location.
func (inv *Invocation) LocalDir(slot string) (string, error) {
	loc, ok := inv.Workspaces[slot]
	if !ok {
		return "", fmt.Errorf("task %s: workspace slot %q is not bound", inv.Ref, slot)
	}
	if loc.Scheme != workspace.SchemeFile {
		return "", fmt.Errorf("task %s: workspace slot %q is bound to %s, a local directory is required", inv.Ref, slot, loc)
	}
	return loc.Path, nil
}
