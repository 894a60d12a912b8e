// Package nodestore defines the store that holds a run's mutable node state.
//
// The store is kept apart from the immutable graph built by package dag: the
// graph answers structural questions (predecessors, order) while the store
// records what has happened to each node in this run. One store is created per
// run, initialized with every node Pending, and discarded (or archived) once
// the run is terminal.
package nodestore

import (
	"context"
	"errors"

	"github.com/vk/pipegrid/internal/node"
)

var ErrUnknownNode = errors.New("unknown node")

// Store records node state for a single run.
//
// Implementations must be safe for concurrent use. Transition is the only way
// to change a node's state and must be atomic with respect to other
// transitions of the same node.
type Store interface {
	// Init registers every node of the run in the Pending state, discarding
	// any previous content.
	Init(ctx context.Context, names []string) error

	// Transition moves a node from one state to another. It fails with a
	// *node.TransitionError if the move is not legal or the node is no
	// longer in state from, and with ErrUnknownNode for unregistered names.
	// Entering Running stamps the start time; entering a terminal state
	// stamps the finish time and records cause (which may be nil).
	Transition(ctx context.Context, name string, from, to node.State, cause error) error

	// Get returns the current record of a node.
	Get(ctx context.Context, name string) (node.Record, error)

	// Snapshot returns a copy of every node's record.
	Snapshot(ctx context.Context) (map[string]node.Record, error)
}
