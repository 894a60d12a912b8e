package engine

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/vk/pipegrid/internal/finalizer"
	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/scheduler"
)

// Status is the overall status of a run.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	// StatusInvalid means the run was rejected before any node ran.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "Succeeded"
	case StatusFailed:
		return "Failed"
	case StatusInvalid:
		return "Invalid"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ExitCode maps a status to the process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusSucceeded:
		return 0
	case StatusInvalid:
		return 2
	default:
		return 1
	}
}

// NodeResult is the terminal state of one main-graph node.
type NodeResult struct {
	Name       string
	State      node.State
	Err        error
	Optional   bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunResult is the outcome of one run.
type RunResult struct {
	RunID    string
	Pipeline string
	Status   Status
	// Main is the main graph's outcome. It is NotStarted for invalid runs.
	Main scheduler.Outcome
	// Nodes holds every main-graph node's terminal state.
	Nodes map[string]NodeResult
	// Order is the topological order used for reporting.
	Order     []string
	Finalizer finalizer.Result
	// FirstFailure describes the first failure by topological position.
	// The finalizer counts as after every node.
	FirstFailure string
	// Cancelled is set when the run context was cancelled before the main
	// graph finished.
	Cancelled bool
	// Err is the configuration error that made the run invalid.
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// ExitCode is 0 when every required node and the finalizer succeeded.
func (r *RunResult) ExitCode() int { return r.Status.ExitCode() }

// Duration is the wall-clock time of the run, finalizer included.
func (r *RunResult) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// WriteReport writes a human-readable table of every node's terminal state,
// in topological order, followed by the finalizer and the overall status.
func (r *RunResult) WriteReport(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Pipeline %s (run %s)\n", r.Pipeline, r.RunID)
	if r.Status == StatusInvalid {
		fmt.Fprintf(tw, "Invalid: %v\n", r.Err)
		return tw.Flush()
	}
	fmt.Fprintln(tw, "NODE\tSTATE\tDURATION\tDETAIL")
	for _, name := range r.Order {
		n := r.Nodes[name]
		state := n.State.String()
		if n.Optional {
			state += " (optional)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, state, duration(n.StartedAt, n.FinishedAt), detail(n.Err))
	}
	if r.Finalizer.State != finalizer.None {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Finalizer.Node+" (finally)", r.Finalizer.State,
			duration(r.Finalizer.StartedAt, r.Finalizer.FinishedAt), detail(r.Finalizer.Err))
	}
	fmt.Fprintf(tw, "Status: %s\n", r.Status)
	if r.FirstFailure != "" {
		fmt.Fprintf(tw, "First failure: %s\n", r.FirstFailure)
	}
	return tw.Flush()
}

func duration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "-"
	}
	return end.Sub(start).Round(time.Millisecond).String()
}

func detail(err error) string {
	if err == nil {
		return ""
	}
	return strings.ReplaceAll(err.Error(), "\n", " ")
}
