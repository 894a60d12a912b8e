package dag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/pipegrid/internal/config"
)

func task(name string, after ...string) *config.TaskNodeSpec {
	return &config.TaskNodeSpec{Name: name, Ref: config.TaskRef{Name: "noop"}, RunAfter: after}
}

func def(tasks ...*config.TaskNodeSpec) *config.Definition {
	return &config.Definition{Name: "test", Tasks: tasks}
}

func TestBuild_ValidGraphs(t *testing.T) {
	t.Run("empty definition", func(t *testing.T) {
		g, err := Build(def())
		require.NoError(t, err)
		assert.Equal(t, 0, g.Len())
		assert.Empty(t, g.Roots())
	})

	t.Run("diamond", func(t *testing.T) {
		g, err := Build(def(
			task("root"),
			task("left", "root"),
			task("right", "root"),
			task("join", "left", "right"),
		))
		require.NoError(t, err)
		assert.Equal(t, []string{"root"}, g.Roots())
		assert.Equal(t, []string{"left", "right"}, g.Successors("root"))
		assert.Equal(t, []string{"left", "right"}, g.Predecessors("join"))
		assert.Empty(t, g.Successors("join"))
		assert.Equal(t, []string{"root", "left", "right", "join"}, g.TopologicalOrder())
		assert.Equal(t, 3, g.Position("join"))
		assert.Equal(t, -1, g.Position("missing"))
	})

	t.Run("all roots", func(t *testing.T) {
		g, err := Build(def(task("a"), task("b"), task("c")))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, g.Roots())
	})

	t.Run("topological order respects edges declared out of order", func(t *testing.T) {
		g, err := Build(def(
			task("postbuild", "build"),
			task("build", "clone"),
			task("clone"),
		))
		require.NoError(t, err)
		assert.Equal(t, []string{"clone", "build", "postbuild"}, g.TopologicalOrder())
	})

	t.Run("duplicate predecessor references collapse", func(t *testing.T) {
		g, err := Build(def(task("a"), task("b", "a", "a")))
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, g.Predecessors("b"))
	})

	t.Run("returned slices are copies", func(t *testing.T) {
		g, err := Build(def(task("a"), task("b", "a")))
		require.NoError(t, err)
		succ := g.Successors("a")
		succ[0] = "mutated"
		assert.Equal(t, []string{"b"}, g.Successors("a"))
	})
}

func TestBuild_Deterministic(t *testing.T) {
	d := def(
		task("clone"),
		task("prebuild", "clone"),
		task("build-a", "prebuild"),
		task("build-b", "prebuild"),
		task("build-c", "prebuild"),
		task("build-d", "prebuild"),
		task("postbuild", "build-a", "build-b", "build-c", "build-d"),
	)
	first, err := Build(d)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Build(d)
		require.NoError(t, err)
		assert.Equal(t, first.TopologicalOrder(), again.TopologicalOrder())
	}
}

func TestBuild_Rejections(t *testing.T) {
	t.Run("unknown predecessor", func(t *testing.T) {
		_, err := Build(def(task("a"), task("b", "ghost")))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownPredecessor)
		assert.ErrorIs(t, err, config.ErrConfiguration)

		var gerr *GraphError
		require.True(t, errors.As(err, &gerr))
		assert.Equal(t, "b", gerr.Node)
		assert.Equal(t, "ghost", gerr.Ref)
	})

	t.Run("duplicate node", func(t *testing.T) {
		_, err := Build(def(task("a"), task("a")))
		assert.ErrorIs(t, err, ErrDuplicateNode)
	})

	t.Run("finalizer shares a task name", func(t *testing.T) {
		d := def(task("exit"))
		d.Finally = task("exit")
		_, err := Build(d)
		assert.ErrorIs(t, err, ErrDuplicateNode)
	})

	t.Run("unknown workspace", func(t *testing.T) {
		d := def(&config.TaskNodeSpec{Name: "a", Workspaces: map[string]string{"src": "undeclared"}})
		_, err := Build(d)
		assert.ErrorIs(t, err, ErrUnknownWorkspace)
	})

	t.Run("finalizer with unknown workspace", func(t *testing.T) {
		d := def(task("a"))
		d.Finally = &config.TaskNodeSpec{Name: "exit", Workspaces: map[string]string{"src": "nope"}}
		_, err := Build(d)
		assert.ErrorIs(t, err, ErrUnknownWorkspace)
	})

	t.Run("empty node name", func(t *testing.T) {
		_, err := Build(def(task("")))
		assert.ErrorIs(t, err, ErrEmptyNodeName)
	})
}

func TestBuild_CycleDetection(t *testing.T) {
	t.Run("self reference", func(t *testing.T) {
		_, err := Build(def(task("a", "a")))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCycleDetected)
		assert.ErrorContains(t, err, "'a'")
	})

	for length := 2; length <= 6; length++ {
		t.Run(fmt.Sprintf("cycle of length %d", length), func(t *testing.T) {
			tasks := make([]*config.TaskNodeSpec, length)
			for i := 0; i < length; i++ {
				prev := (i + length - 1) % length
				tasks[i] = task(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", prev))
			}
			_, err := Build(def(tasks...))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCycleDetected)

			var gerr *GraphError
			require.True(t, errors.As(err, &gerr))
			assert.Regexp(t, `^n\d$`, gerr.Node)
		})
	}

	t.Run("cycle in a disjoint component", func(t *testing.T) {
		_, err := Build(def(
			task("a"),
			task("b", "a"),
			task("x", "z"),
			task("y", "x"),
			task("z", "y"),
		))
		assert.ErrorIs(t, err, ErrCycleDetected)
	})

	t.Run("transitive edge is not a cycle", func(t *testing.T) {
		_, err := Build(def(task("a"), task("b", "a"), task("c", "a", "b")))
		assert.NoError(t, err)
	})
}
