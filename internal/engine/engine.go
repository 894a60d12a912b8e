package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vk/pipegrid/internal/archive"
	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/dag"
	"github.com/vk/pipegrid/internal/finalizer"
	"github.com/vk/pipegrid/internal/inmemorystore"
	"github.com/vk/pipegrid/internal/metrics"
	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/nodestore"
	"github.com/vk/pipegrid/internal/notify"
	"github.com/vk/pipegrid/internal/params"
	"github.com/vk/pipegrid/internal/registry"
	"github.com/vk/pipegrid/internal/scheduler"
	"github.com/vk/pipegrid/internal/workspace"
	"github.com/zclconf/go-cty/cty"
)

// Engine executes pipeline runs against a task registry.
type Engine struct {
	registry *registry.Registry
	recorder metrics.Recorder
	observer notify.Observer
	archive  archive.Store
	probers  map[string]workspace.Prober
	newStore func() nodestore.Store
	newRunID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder reports run and node metrics to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithObserver publishes run events to o.
func WithObserver(o notify.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithArchive stores every terminal run in s.
func WithArchive(s archive.Store) Option {
	return func(e *Engine) { e.archive = s }
}

// WithProbers checks workspace locations of the given schemes before a node
// uses them.
func WithProbers(p map[string]workspace.Prober) Option {
	return func(e *Engine) { e.probers = p }
}

// WithStoreFactory replaces the node state store used for each run.
func WithStoreFactory(fn func() nodestore.Store) Option {
	return func(e *Engine) { e.newStore = fn }
}

// WithRunIDs replaces the run identifier generator.
func WithRunIDs(fn func() string) Option {
	return func(e *Engine) { e.newRunID = fn }
}

// New creates an engine that resolves tasks from reg.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		recorder: metrics.NoopRecorder{},
		observer: notify.LogObserver{},
		newStore: func() nodestore.Store { return inmemorystore.New() },
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks a definition without running it: the graph must be
// acyclic and well-formed, every task reference must resolve and every
// declared default must match its type.
func (e *Engine) Validate(def *config.Definition) (*dag.Graph, error) {
	g, err := dag.Build(def)
	if err != nil {
		return nil, err
	}
	if err := e.registry.Validate(def); err != nil {
		return nil, err
	}
	if err := params.Validate(def, nil); err != nil {
		return nil, err
	}
	if def.Finally != nil {
		// Values are not known yet, so only references that can never
		// resolve are reported here.
		r, err := params.NewResolver(def, nil)
		if err != nil {
			return nil, err
		}
		r = r.WithContext(params.Context{
			"context.run.id":        cty.StringVal(""),
			"context.pipeline.name": cty.StringVal(def.Name),
		}).WithContext(finalizerContext(g))
		if _, err := r.Resolve(def.Finally); err != nil && !errors.Is(err, params.ErrMissingParameter) {
			return nil, err
		}
	}
	return g, nil
}

// finalizerContext stands in for the main-graph status references so the
// finalizer's parameters can be checked before any node runs.
func finalizerContext(g *dag.Graph) params.Context {
	records := make(map[string]node.Record, g.Len())
	for _, name := range g.Nodes() {
		records[name] = node.Record{State: node.Succeeded}
	}
	return finalizer.StatusContext(scheduler.Succeeded, records)
}

// Execute runs def with the supplied parameter values and workspace
// bindings. The returned error is non-nil only when the run was rejected as
// invalid (it then matches config.ErrConfiguration); node and finalizer
// failures are reported in the RunResult, which is always returned.
func (e *Engine) Execute(ctx context.Context, def *config.Definition, values params.Values, ws workspace.Bindings) (*RunResult, error) {
	r := &run{
		engine: e,
		def:    def,
		result: &RunResult{
			RunID:     e.newRunID(),
			Pipeline:  def.Name,
			Nodes:     map[string]NodeResult{},
			StartedAt: time.Now(),
		},
	}
	ctx = ctxlog.With(ctx, "run_id", r.result.RunID, "pipeline", def.Name)
	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting run.", "nodes", len(def.Tasks), "finalizer", def.Finally != nil)

	if err := r.prepare(ctx, values, ws); err != nil {
		logger.Error("Run rejected.", "error", err)
		r.result.Status = StatusInvalid
		r.result.Err = err
		r.result.FirstFailure = err.Error()
		r.finish(ctx)
		return r.result, err
	}

	r.execute(ctx)
	r.finish(ctx)
	return r.result, nil
}

// Archived looks up a run in the configured archive.
func (e *Engine) Archived(ctx context.Context, runID string) (archive.RunRecord, error) {
	if e.archive == nil {
		return archive.RunRecord{}, errors.New("no run archive configured")
	}
	return e.archive.Get(ctx, runID)
}

func (e *Engine) notify(ctx context.Context, evt notify.RunEvent) {
	if e.observer == nil {
		return
	}
	evt.Time = time.Now()
	e.observer.Notify(ctx, evt)
}

func wrapConfig(err error) error {
	if errors.Is(err, config.ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
}
