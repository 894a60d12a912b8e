package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/dag"
	"github.com/vk/pipegrid/internal/finalizer"
	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/notify"
	"github.com/vk/pipegrid/internal/params"
	"github.com/vk/pipegrid/internal/scheduler"
	"github.com/vk/pipegrid/internal/task"
	"github.com/vk/pipegrid/internal/workspace"
	"github.com/zclconf/go-cty/cty"
)

// run holds the state of one Execute call.
type run struct {
	engine *Engine
	def    *config.Definition
	result *RunResult

	graph    *dag.Graph
	resolver *params.Resolver
	binder   *workspace.Binder
	resolved map[string]params.Resolved
}

// prepare validates everything that can be checked before the first node
// runs. Any error it returns is a configuration error.
func (r *run) prepare(ctx context.Context, values params.Values, ws workspace.Bindings) error {
	g, err := r.engine.Validate(r.def)
	if err != nil {
		return wrapConfig(err)
	}
	r.graph = g
	r.result.Order = g.TopologicalOrder()

	resolver, err := params.NewResolver(r.def, values)
	if err != nil {
		return wrapConfig(err)
	}
	r.resolver = resolver.WithContext(params.Context{
		"context.run.id":        cty.StringVal(r.result.RunID),
		"context.pipeline.name": cty.StringVal(r.def.Name),
	})

	r.resolved = make(map[string]params.Resolved, g.Len())
	for _, name := range r.result.Order {
		p, err := r.resolver.Resolve(g.Spec(name))
		if err != nil {
			return wrapConfig(err)
		}
		r.resolved[name] = p
	}
	if fin := r.def.Finally; fin != nil {
		if _, err := r.resolver.WithContext(finalizerContext(g)).Resolve(fin); err != nil {
			return wrapConfig(err)
		}
	}

	r.binder = workspace.NewBinder(ws, r.engine.probers)
	return nil
}

func (r *run) execute(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	e := r.engine
	e.notify(ctx, notify.RunEvent{Type: notify.RunStarted, RunID: r.result.RunID, Pipeline: r.def.Name})

	store := e.newStore()
	sched := scheduler.New(r.graph, store, scheduler.DispatchFunc(r.dispatch),
		scheduler.WithObserver(r.onTransition))

	main, err := sched.Run(ctx)
	if err != nil {
		logger.Error("Scheduler reported an internal error.", "error", err)
		main = scheduler.Failed
	}
	r.result.Main = main
	r.result.Cancelled = ctx.Err() != nil

	records, err := store.Snapshot(context.WithoutCancel(ctx))
	if err != nil {
		logger.Error("Failed to read node states.", "error", err)
	}
	for _, name := range r.result.Order {
		rec := records[name]
		r.result.Nodes[name] = NodeResult{
			Name:       name,
			State:      rec.State,
			Err:        rec.Err,
			Optional:   r.graph.Spec(name).Optional,
			StartedAt:  rec.StartedAt,
			FinishedAt: rec.FinishedAt,
		}
	}

	fin := finalizer.New(r.def.Finally, finalizer.PrepareFunc(r.prepareFinalizer))
	r.result.Finalizer = fin.Run(ctx, main, records)
	if r.result.Finalizer.State != finalizer.None {
		e.recorder.IncFinalizerResult(r.result.Finalizer.State.String())
		evt := notify.RunEvent{
			Type:     notify.FinalizerFinished,
			RunID:    r.result.RunID,
			Pipeline: r.def.Name,
			Node:     r.result.Finalizer.Node,
			Status:   r.result.Finalizer.State.String(),
		}
		if r.result.Finalizer.Err != nil {
			evt.Error = r.result.Finalizer.Err.Error()
		}
		e.notify(context.WithoutCancel(ctx), evt)
	}

	r.result.Status = StatusSucceeded
	if main != scheduler.Succeeded || !r.result.Finalizer.State.OK() {
		r.result.Status = StatusFailed
	}
	r.result.FirstFailure = r.firstFailure()
}

// dispatch runs on a scheduler worker: bind, look up, invoke.
func (r *run) dispatch(ctx context.Context, spec *config.TaskNodeSpec) error {
	bound, err := r.binder.Bind(ctx, spec)
	if err != nil {
		return err
	}
	t, version, err := r.engine.registry.Resolve(spec.Ref)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Invoking task.", "task", spec.Ref.Name, "version", version.String())
	inv := task.NewInvocation(r.result.RunID, r.def.Name, spec, r.resolved[spec.Name], bound, r.progress(ctx))
	return t.Run(ctx, inv)
}

func (r *run) prepareFinalizer(ctx context.Context, spec *config.TaskNodeSpec, extra params.Context) (finalizer.Runner, error) {
	bound, err := r.binder.Bind(ctx, spec)
	if err != nil {
		return nil, err
	}
	p, err := r.resolver.WithContext(extra).Resolve(spec)
	if err != nil {
		return nil, err
	}
	t, _, err := r.engine.registry.Resolve(spec.Ref)
	if err != nil {
		return nil, err
	}
	inv := task.NewInvocation(r.result.RunID, r.def.Name, spec, p, bound, r.progress(ctx))
	return func(ctx context.Context) error { return t.Run(ctx, inv) }, nil
}

func (r *run) progress(ctx context.Context) task.ProgressFunc {
	return func(nodeName, message string) {
		r.engine.notify(ctx, notify.RunEvent{
			Type:     notify.TaskProgress,
			RunID:    r.result.RunID,
			Pipeline: r.def.Name,
			Node:     nodeName,
			Message:  message,
		})
	}
}

func (r *run) onTransition(ctx context.Context, t scheduler.Transition) {
	rec := r.engine.recorder
	rec.SetRunningNodes(t.Running)
	if t.To.Terminal() {
		rec.IncNodeResult(t.Node, t.To.String())
		if t.Duration > 0 {
			rec.ObserveNodeDuration(t.Node, t.Duration)
		}
	}
	evt := notify.RunEvent{
		Type:     notify.NodeTransition,
		RunID:    r.result.RunID,
		Pipeline: r.def.Name,
		Node:     t.Node,
		From:     t.From.String(),
		To:       t.To.String(),
	}
	if t.Err != nil {
		evt.Error = t.Err.Error()
	}
	r.engine.notify(ctx, evt)
}

// firstFailure picks the failure to report, by topological position: the
// first required node that failed, then any failed node, then the first
// required node that was skipped, then the finalizer.
func (r *run) firstFailure() string {
	if r.result.Status == StatusSucceeded {
		return ""
	}
	pick := func(match func(NodeResult) bool) (NodeResult, bool) {
		for _, name := range r.result.Order {
			if n := r.result.Nodes[name]; match(n) {
				return n, true
			}
		}
		return NodeResult{}, false
	}
	if n, ok := pick(func(n NodeResult) bool { return n.State == node.Failed && !n.Optional }); ok {
		return describe(n)
	}
	if n, ok := pick(func(n NodeResult) bool { return n.State == node.Failed }); ok {
		return describe(n)
	}
	if n, ok := pick(func(n NodeResult) bool { return n.State == node.Skipped && !n.Optional }); ok {
		return describe(n)
	}
	if f := r.result.Finalizer; !f.State.OK() {
		return fmt.Sprintf("finalizer '%s' %s: %v", f.Node, f.State, f.Err)
	}
	return ""
}

func describe(n NodeResult) string {
	var nerr *scheduler.NodeError
	if errors.As(n.Err, &nerr) {
		return fmt.Sprintf("node '%s' failed: %v", n.Name, nerr.Err)
	}
	if n.Err != nil {
		return n.Err.Error()
	}
	return fmt.Sprintf("node '%s' %s", n.Name, n.State)
}

// finish records metrics, publishes the final event and archives the run.
func (r *run) finish(ctx context.Context) {
	e := r.engine
	ctx = context.WithoutCancel(ctx)
	r.result.FinishedAt = time.Now()

	e.recorder.ObserveRunDuration(r.result.Duration())
	e.recorder.IncRunOutcome(r.result.Status.String())
	e.recorder.SetRunningNodes(0)
	e.notify(ctx, notify.RunEvent{
		Type:     notify.RunFinished,
		RunID:    r.result.RunID,
		Pipeline: r.def.Name,
		Status:   r.result.Status.String(),
		Message:  r.result.FirstFailure,
	})

	logger := ctxlog.FromContext(ctx)
	logger.Info("Run finished.", "status", r.result.Status.String(), "duration", r.result.Duration(), "first_failure", r.result.FirstFailure)

	if e.archive != nil {
		if err := e.archive.Save(ctx, toRecord(r.result)); err != nil {
			logger.Error("Failed to archive run.", "error", err)
		}
	}
}
