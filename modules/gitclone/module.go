// Package gitclone provides the "git-clone" task: it checks out a git
// repository into a bound workspace using go-git.
package gitclone

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/registry"
	"github.com/vk/pipegrid/internal/task"
)

// DefaultSlot is the workspace slot cloned into when the node does not name one.
const DefaultSlot = "source"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters of the git-clone task.
type Input struct {
	URL string `cty:"url"`
	// Revision is a branch or tag name. Empty means the remote HEAD.
	Revision  string `cty:"revision"`
	Depth     int    `cty:"depth"`
	Subdir    string `cty:"subdir"`
	Workspace string `cty:"workspace"`
	// DeleteExisting empties the target directory before cloning.
	DeleteExisting bool `cty:"delete_existing"`
}

// Clone checks out the repository and reports the commit as progress.
func Clone(ctx context.Context, inv *task.Invocation) error {
	logger := ctxlog.FromContext(ctx)

	in := Input{DeleteExisting: true}
	if err := inv.Decode(&in); err != nil {
		return err
	}
	if in.URL == "" {
		return fmt.Errorf("task %s: missing url", inv.Ref)
	}
	slot := in.Workspace
	if slot == "" {
		slot = DefaultSlot
	}
	base, err := inv.LocalDir(slot)
	if err != nil {
		return err
	}
	target := base
	if in.Subdir != "" {
		if !filepath.IsLocal(in.Subdir) {
			return fmt.Errorf("task %s: subdir %q must stay inside the workspace", inv.Ref, in.Subdir)
		}
		target = filepath.Join(base, in.Subdir)
	}
	if in.DeleteExisting {
		if err := emptyDir(target); err != nil {
			return fmt.Errorf("cleaning %s: %w", target, err)
		}
	}

	opts := &git.CloneOptions{URL: in.URL, Depth: in.Depth}
	logger.Info("Cloning repository", "url", in.URL, "revision", in.Revision, "path", target)

	repo, err := cloneRevision(ctx, target, opts, in.Revision)
	if err != nil {
		return fmt.Errorf("failed to clone repository %s: %w", in.URL, err)
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("reading HEAD of %s: %w", in.URL, err)
	}
	inv.Progressf("checked out %s at %s", in.URL, head.Hash().String())
	logger.Info("Repository cloned successfully", "url", in.URL, "commit", head.Hash().String())
	return nil
}

// cloneRevision tries the revision as a branch first, then as a tag.
func cloneRevision(ctx context.Context, target string, opts *git.CloneOptions, revision string) (*git.Repository, error) {
	if revision == "" {
		return git.PlainCloneContext(ctx, target, false, opts)
	}
	opts.SingleBranch = true
	opts.ReferenceName = plumbing.NewBranchReferenceName(revision)
	repo, err := git.PlainCloneContext(ctx, target, false, opts)
	if err == nil || !isMissingRef(err) {
		return repo, err
	}
	if err := emptyDir(target); err != nil {
		return nil, err
	}
	opts.ReferenceName = plumbing.NewTagReferenceName(revision)
	return git.PlainCloneContext(ctx, target, false, opts)
}

func isMissingRef(err error) bool {
	var noMatch git.NoMatchingRefSpecError
	return errors.Is(err, plumbing.ErrReferenceNotFound) || errors.As(err, &noMatch)
}

// emptyDir removes the contents of dir, creating it if needed.
func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Register registers the task with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunc("git-clone", "1.0.0", Clone)
}
