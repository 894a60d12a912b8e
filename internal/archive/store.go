package archive

import (
	"context"
	"errors"
	"time"
)

var ErrRunNotFound = errors.New("run not found")

// RunRecord is the archived summary of one run.
type RunRecord struct {
	ID         string
	Pipeline   string
	Status     string
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
	// Summary describes the first failure by topological position, or is
	// empty for a successful run.
	Summary string
	Nodes   []NodeRecord
}

// NodeRecord is the archived terminal state of one node.
type NodeRecord struct {
	Name string
	// Position is the node's index in topological order. The finalizer is
	// placed after every main-graph node.
	Position   int
	Finalizer  bool
	State      string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store persists and retrieves archived runs.
type Store interface {
	Save(ctx context.Context, run RunRecord) error
	Get(ctx context.Context, runID string) (RunRecord, error)
	// List returns the runs of a pipeline, newest first, without their
	// nodes. An empty pipeline lists every run.
	List(ctx context.Context, pipeline string) ([]RunRecord, error)
	Close() error
}
