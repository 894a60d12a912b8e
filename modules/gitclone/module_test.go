package gitclone

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/params"
	"github.com/vk/pipegrid/internal/task"
	"github.com/vk/pipegrid/internal/workspace"
	"github.com/zclconf/go-cty/cty"
)

// seedRepo creates a repository with one commit on master, a "release"
// branch and a "v1.0.0" tag.
func seedRepo(t *testing.T) (string, plumbing.Hash) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Containerfile"), []byte("FROM scratch\n"), 0o644))
	_, err = wt.Add("Containerfile")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("release"), hash)))
	_, err = repo.CreateTag("v1.0.0", hash, nil)
	require.NoError(t, err)
	return dir, hash
}

func invocation(p params.Resolved, ws workspace.Bound, progress task.ProgressFunc) *task.Invocation {
	spec := &config.TaskNodeSpec{Name: "clone", Ref: config.TaskRef{Name: "git-clone", Version: "1"}}
	return task.NewInvocation("run", "container-build", spec, p, ws, progress)
}

func bound(dir string) workspace.Bound {
	return workspace.Bound{DefaultSlot: {Workspace: "ws-container", Scheme: workspace.SchemeFile, Path: dir}}
}

func TestClone(t *testing.T) {
	origin, hash := seedRepo(t)

	for _, rev := range []string{"", "release", "v1.0.0"} {
		t.Run("revision "+rev, func(t *testing.T) {
			ws := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(ws, "stale.txt"), nil, 0o644))

			var messages []string
			inv := invocation(params.Resolved{
				"url":      cty.StringVal(origin),
				"revision": cty.StringVal(rev),
			}, bound(ws), func(_, msg string) { messages = append(messages, msg) })

			require.NoError(t, Clone(context.Background(), inv))
			assert.FileExists(t, filepath.Join(ws, "Containerfile"))
			assert.NoFileExists(t, filepath.Join(ws, "stale.txt"))
			require.Len(t, messages, 1)
			assert.Contains(t, messages[0], hash.String())
		})
	}
}

func TestClone_Subdir(t *testing.T) {
	origin, _ := seedRepo(t)
	ws := t.TempDir()
	inv := invocation(params.Resolved{
		"url":    cty.StringVal(origin),
		"subdir": cty.StringVal("src/app"),
	}, bound(ws), nil)
	require.NoError(t, Clone(context.Background(), inv))
	assert.FileExists(t, filepath.Join(ws, "src", "app", "Containerfile"))
}

func TestClone_Errors(t *testing.T) {
	origin, _ := seedRepo(t)
	ws := t.TempDir()
	cases := map[string]struct {
		params params.Resolved
		ws     workspace.Bound
		want   string
	}{
		"missing url":     {params.Resolved{}, bound(ws), "missing url"},
		"unbound":         {params.Resolved{"url": cty.StringVal(origin)}, nil, "not bound"},
		"escaping subdir": {params.Resolved{"url": cty.StringVal(origin), "subdir": cty.StringVal("../../etc")}, bound(ws), "inside the workspace"},
		"unknown rev":     {params.Resolved{"url": cty.StringVal(origin), "revision": cty.StringVal("nope")}, bound(ws), "failed to clone"},
		"bad remote":      {params.Resolved{"url": cty.StringVal(filepath.Join(ws, "missing"))}, bound(t.TempDir()), "failed to clone"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := Clone(context.Background(), invocation(tc.params, tc.ws, nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
