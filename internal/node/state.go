package node

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State is the execution state of a single node within one run.
type State int32

const (
	// Pending nodes are waiting for their predecessors to reach a terminal state.
	Pending State = iota
	// Ready nodes have every predecessor Succeeded and may be dispatched.
	Ready
	// Running nodes have been handed to a worker.
	Running
	// Succeeded nodes reported success.
	Succeeded
	// Failed nodes reported failure, could not be dispatched, or were cancelled
	// while running.
	Failed
	// Skipped nodes were never attempted because an upstream node did not
	// succeed or the run was cancelled.
	Skipped
)

var stateNames = [...]string{"Pending", "Ready", "Running", "Succeeded", "Failed", "Skipped"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// ParseState parses a state name, case-insensitively.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if strings.EqualFold(name, s) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown node state %q", s)
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Skipped
}

var transitions = map[State][]State{
	Pending: {Ready, Skipped},
	Ready:   {Running, Skipped},
	Running: {Succeeded, Failed},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var ErrIllegalTransition = errors.New("illegal state transition")

// TransitionError reports a rejected state change.
type TransitionError struct {
	Node string
	From State
	To   State
	// Actual is the state the node was in when the change was attempted, if
	// it differed from From.
	Actual State
}

func (e *TransitionError) Error() string {
	if e.Actual != e.From {
		return fmt.Sprintf("node '%s': %v %s -> %s: node is %s", e.Node, ErrIllegalTransition, e.From, e.To, e.Actual)
	}
	return fmt.Sprintf("node '%s': %v %s -> %s", e.Node, ErrIllegalTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// Record is the state of one node together with its outcome details.
type Record struct {
	State      State
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the time the node spent Running, or zero if it never ran to
// completion.
func (r Record) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
