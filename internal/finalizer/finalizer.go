package finalizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/params"
	"github.com/vk/pipegrid/internal/scheduler"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrSetupFailed means the finalizer could not be dispatched at all, for
	// example because a workspace binding or parameter failed to resolve.
	ErrSetupFailed = errors.New("finalizer setup failed")
	// ErrExecution means the finalizer task ran and reported failure.
	ErrExecution = errors.New("finalizer execution failed")
)

// State is the terminal state of the finalizer.
type State int

const (
	// None means the pipeline declares no finalizer.
	None State = iota
	Succeeded
	Failed
	SetupFailed
)

func (s State) String() string {
	switch s {
	case None:
		return "None"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	case SetupFailed:
		return "SetupFailed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// OK reports whether the finalizer did not fail.
func (s State) OK() bool { return s == None || s == Succeeded }

// Result is the finalizer's recorded outcome.
type Result struct {
	Node       string
	State      State
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Runner executes a prepared finalizer.
type Runner func(ctx context.Context) error

// Preparer binds and resolves the finalizer node, returning the call that
// runs it. extra carries the main-graph status references.
type Preparer interface {
	Prepare(ctx context.Context, spec *config.TaskNodeSpec, extra params.Context) (Runner, error)
}

// PrepareFunc adapts a function to the Preparer interface.
type PrepareFunc func(ctx context.Context, spec *config.TaskNodeSpec, extra params.Context) (Runner, error)

func (f PrepareFunc) Prepare(ctx context.Context, spec *config.TaskNodeSpec, extra params.Context) (Runner, error) {
	return f(ctx, spec, extra)
}

// Finalizer guards a single execution of the finalizer node.
type Finalizer struct {
	spec     *config.TaskNodeSpec
	preparer Preparer

	once   sync.Once
	result Result
}

// New returns a finalizer for spec. A nil spec yields a finalizer that
// records state None.
func New(spec *config.TaskNodeSpec, p Preparer) *Finalizer {
	return &Finalizer{spec: spec, preparer: p}
}

// Run executes the finalizer if it has not run yet and returns its result.
// Later calls return the first result without running anything.
func (f *Finalizer) Run(ctx context.Context, main scheduler.Outcome, records map[string]node.Record) Result {
	f.once.Do(func() {
		f.result = f.run(context.WithoutCancel(ctx), main, records)
	})
	return f.result
}

// Result returns the recorded result, or a zero Result before Run.
func (f *Finalizer) Result() Result { return f.result }

func (f *Finalizer) run(ctx context.Context, main scheduler.Outcome, records map[string]node.Record) Result {
	if f.spec == nil {
		return Result{State: None}
	}
	res := Result{Node: f.spec.Name, StartedAt: time.Now()}
	ctx = ctxlog.With(ctx, "node", f.spec.Name, "finalizer", true)
	logger := ctxlog.FromContext(ctx)
	logger.Info("Running finalizer.", "main_outcome", main.String())

	runner, err := f.preparer.Prepare(ctx, f.spec, StatusContext(main, records))
	if err != nil {
		res.State = SetupFailed
		res.Err = fmt.Errorf("%w: %w", ErrSetupFailed, err)
		res.FinishedAt = time.Now()
		logger.Error("Finalizer could not be dispatched.", "error", err)
		return res
	}

	if f.spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.spec.Timeout)
		defer cancel()
	}
	if err := safeRun(ctx, runner); err != nil {
		res.State = Failed
		res.Err = fmt.Errorf("%w: %w", ErrExecution, err)
		logger.Error("Finalizer failed.", "error", err)
	} else {
		res.State = Succeeded
		logger.Info("Finalizer succeeded.")
	}
	res.FinishedAt = time.Now()
	return res
}

func safeRun(ctx context.Context, r Runner) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return r(ctx)
}

// StatusContext exposes the main graph's result to the finalizer's
// parameters: "tasks.status" is "Succeeded" or "Failed", and
// "tasks.NODE.status" is each node's terminal state. "tasks.failed" lists
// the failed nodes, comma separated, in name order.
func StatusContext(main scheduler.Outcome, records map[string]node.Record) params.Context {
	c := params.Context{"tasks.status": cty.StringVal(main.String())}
	var failed []string
	for name, rec := range records {
		c["tasks."+name+".status"] = cty.StringVal(rec.State.String())
		if rec.State == node.Failed {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	c["tasks.failed"] = cty.StringVal(strings.Join(failed, ","))
	return c
}
