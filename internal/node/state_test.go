package node

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	all := []State{Pending, Ready, Running, Succeeded, Failed, Skipped}
	legal := map[[2]State]bool{
		{Pending, Ready}:     true,
		{Pending, Skipped}:   true,
		{Ready, Running}:     true,
		{Ready, Skipped}:     true,
		{Running, Succeeded}: true,
		{Running, Failed}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]State{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, Pending.Terminal())
	assert.False(t, Ready.Terminal())
	assert.False(t, Running.Terminal())
	assert.True(t, Succeeded.Terminal())
	assert.True(t, Failed.Terminal())
	assert.True(t, Skipped.Terminal())
	for _, s := range []State{Succeeded, Failed, Skipped} {
		for _, next := range []State{Pending, Ready, Running, Succeeded, Failed, Skipped} {
			assert.False(t, s.CanTransitionTo(next), "terminal %s must not move to %s", s, next)
		}
	}
}

func TestParseState(t *testing.T) {
	s, err := ParseState("succeeded")
	require.NoError(t, err)
	assert.Equal(t, Succeeded, s)
	assert.Equal(t, "Skipped", Skipped.String())
	assert.Equal(t, "State(42)", State(42).String())

	_, err = ParseState("done")
	assert.Error(t, err)
}

func TestTransitionError(t *testing.T) {
	err := &TransitionError{Node: "build", From: Ready, To: Running, Actual: Skipped}
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Contains(t, err.Error(), "node is Skipped")
}

func TestRecordDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Zero(t, Record{StartedAt: start}.Duration())
	assert.Equal(t, 2*time.Second, Record{StartedAt: start, FinishedAt: start.Add(2 * time.Second)}.Duration())
}
