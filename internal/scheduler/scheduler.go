package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/dag"
	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/nodestore"
)

// Dispatcher performs the work of one node once it is Running: binding its
// workspaces, resolving its parameters and invoking its task. A nil return
// means the node succeeded.
type Dispatcher interface {
	Dispatch(ctx context.Context, spec *config.TaskNodeSpec) error
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(ctx context.Context, spec *config.TaskNodeSpec) error

func (f DispatchFunc) Dispatch(ctx context.Context, spec *config.TaskNodeSpec) error {
	return f(ctx, spec)
}

// Transition describes one node state change, as seen by observers.
type Transition struct {
	Node string
	From node.State
	To   node.State
	Err  error
	// Duration is set when a Running node reaches a terminal state.
	Duration time.Duration
	// Running is the number of nodes running after the change.
	Running int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithObserver registers a function called, on the coordinator goroutine,
// after every node state change.
func WithObserver(fn func(ctx context.Context, t Transition)) Option {
	return func(s *Scheduler) { s.observers = append(s.observers, fn) }
}

// Scheduler executes one run of a graph.
type Scheduler struct {
	graph     *dag.Graph
	store     nodestore.Store
	dispatch  Dispatcher
	observers []func(context.Context, Transition)
	outcome   outcomeValue

	// Coordinator-only state.
	remaining map[string]int
	running   int
	cancelled bool
	err       error
}

// New creates a scheduler for g that records state in store.
func New(g *dag.Graph, store nodestore.Store, d Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{graph: g, store: store, dispatch: d}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Outcome returns the current pipeline-level state of the main graph.
func (s *Scheduler) Outcome() Outcome { return s.outcome.Load() }

type result struct {
	node string
	err  error
}

// Run executes the graph to completion and returns its outcome. The main
// graph Succeeded when every node that is not optional Succeeded. The error
// is non-nil only if the state store rejected a transition, which indicates a
// bug rather than a node failure.
func (s *Scheduler) Run(ctx context.Context) (Outcome, error) {
	logger := ctxlog.FromContext(ctx)
	// Bookkeeping must keep working after ctx is cancelled.
	bctx := context.WithoutCancel(ctx)

	if err := s.store.Init(bctx, s.graph.Nodes()); err != nil {
		return Failed, fmt.Errorf("initializing node state: %w", err)
	}
	s.outcome.Store(Running)
	s.remaining = make(map[string]int, s.graph.Len())
	s.running = 0
	s.cancelled = false
	s.err = nil

	results := make(chan result, s.graph.Len())
	order := s.graph.TopologicalOrder()
	logger.Info("Scheduler started.", "nodes", len(order))

	var ready []string
	for _, name := range order {
		s.remaining[name] = len(s.graph.Predecessors(name))
		if s.remaining[name] == 0 {
			s.move(bctx, name, node.Pending, node.Ready, nil, 0)
			ready = append(ready, name)
		}
	}
	s.release(ctx, bctx, ready, results)

	done := ctx.Done()
	for s.running > 0 {
		select {
		case r := <-results:
			s.running--
			s.complete(ctx, bctx, r, results)
		case <-done:
			done = nil
			logger.Warn("Run cancelled, skipping nodes that have not started.", "running", s.running, "reason", context.Cause(ctx))
			s.cancelAll(bctx)
		}
	}

	out := s.finalOutcome(bctx)
	s.outcome.Store(out)
	logger.Info("Scheduler finished.", "outcome", out.String())
	return out, s.err
}

// release starts every named Ready node, unless the run has been cancelled
// in which case they are skipped instead.
func (s *Scheduler) release(ctx, bctx context.Context, names []string, results chan<- result) {
	if ctx.Err() != nil && !s.cancelled {
		s.cancelAll(bctx)
		return
	}
	for _, name := range names {
		if s.cancelled {
			s.move(bctx, name, node.Ready, node.Skipped, &SkipError{Node: name}, 0)
			continue
		}
		s.running++
		s.move(bctx, name, node.Ready, node.Running, nil, 0)
		go s.work(ctx, name, results)
	}
}

// work runs on a worker goroutine. It must not touch the store.
func (s *Scheduler) work(ctx context.Context, name string, results chan<- result) {
	spec := s.graph.Spec(name)
	nctx := ctxlog.With(ctx, "node", name)
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(nctx, spec.Timeout)
		defer cancel()
	}

	err := s.safeDispatch(nctx, spec)
	if err == nil && nctx.Err() != nil && ctx.Err() == nil {
		// The task ignored its deadline and reported success.
		err = fmt.Errorf("timed out after %s: %w", spec.Timeout, nctx.Err())
	}
	results <- result{node: name, err: err}
}

func (s *Scheduler) safeDispatch(ctx context.Context, spec *config.TaskNodeSpec) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("Task panicked.", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return s.dispatch.Dispatch(ctx, spec)
}

func (s *Scheduler) complete(ctx, bctx context.Context, r result, results chan<- result) {
	logger := ctxlog.FromContext(ctx).With("node", r.node)
	var elapsed time.Duration
	if rec, err := s.store.Get(bctx, r.node); err != nil {
		logger.Error("Failed to read node state.", "error", err)
		if s.err == nil {
			s.err = err
		}
	} else {
		elapsed = time.Since(rec.StartedAt)
	}

	if r.err != nil {
		nerr := &NodeError{Node: r.node, Err: r.err}
		logger.Error("Node failed.", "error", r.err, "duration", elapsed)
		s.move(bctx, r.node, node.Running, node.Failed, nerr, elapsed)
		s.skipDependents(bctx, r.node)
		return
	}

	logger.Info("Node succeeded.", "duration", elapsed)
	s.move(bctx, r.node, node.Running, node.Succeeded, nil, elapsed)

	var ready []string
	for _, succ := range s.graph.Successors(r.node) {
		s.remaining[succ]--
		if s.remaining[succ] > 0 {
			continue
		}
		if st, err := s.store.Get(bctx, succ); err != nil || st.State != node.Pending {
			continue
		}
		logger.Debug("Releasing dependent node.", "dependent", succ)
		s.move(bctx, succ, node.Pending, node.Ready, nil, 0)
		ready = append(ready, succ)
	}
	s.release(ctx, bctx, ready, results)
}

// skipDependents marks every Pending node reachable from failed as Skipped.
func (s *Scheduler) skipDependents(ctx context.Context, failed string) {
	queue := s.graph.Successors(failed)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		rec, err := s.store.Get(ctx, name)
		if err != nil || rec.State != node.Pending {
			continue
		}
		ctxlog.FromContext(ctx).Info("Skipping node.", "node", name, "failed_upstream", failed)
		s.move(ctx, name, node.Pending, node.Skipped, &SkipError{Node: name, Cause: failed}, 0)
		queue = append(queue, s.graph.Successors(name)...)
	}
}

// cancelAll skips every node that has not started. Running nodes observe
// cancellation through their context.
func (s *Scheduler) cancelAll(ctx context.Context) {
	s.cancelled = true
	for _, name := range s.graph.TopologicalOrder() {
		rec, err := s.store.Get(ctx, name)
		if err != nil {
			continue
		}
		if rec.State == node.Pending || rec.State == node.Ready {
			s.move(ctx, name, rec.State, node.Skipped, &SkipError{Node: name}, 0)
		}
	}
}

func (s *Scheduler) finalOutcome(ctx context.Context) Outcome {
	for _, name := range s.graph.Nodes() {
		rec, err := s.store.Get(ctx, name)
		if err != nil {
			return Failed
		}
		if rec.State != node.Succeeded && !s.graph.Spec(name).Optional {
			return Failed
		}
	}
	return Succeeded
}

func (s *Scheduler) move(ctx context.Context, name string, from, to node.State, cause error, d time.Duration) {
	if err := s.store.Transition(ctx, name, from, to, cause); err != nil {
		ctxlog.FromContext(ctx).Error("Rejected node state transition.", "node", name, "error", err)
		if s.err == nil {
			s.err = err
		}
		return
	}
	t := Transition{Node: name, From: from, To: to, Err: cause, Duration: d, Running: s.running}
	for _, fn := range s.observers {
		fn(ctx, t)
	}
}
