// Package exec provides the "exec" task: it runs a process inside a bound
// workspace directory and streams its output as progress messages.
//
//	exec@1.0.0  args
//	exec@1.1.0  args or script (run with sh -c), env
package exec

import (
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/registry"
	"github.com/vk/pipegrid/internal/task"
)

// DefaultSlot is the workspace slot used when the node does not name one.
const DefaultSlot = "source"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters of the exec task.
type Input struct {
	Args   []string          `cty:"args"`
	Script string            `cty:"script"`
	Env    map[string]string `cty:"env"`
	// Workspace is the slot whose directory the process runs in.
	Workspace string `cty:"workspace"`
	// Dir is a subdirectory of the workspace.
	Dir string `cty:"dir"`
}

type runner struct {
	scripts bool
}

func (r runner) Run(ctx context.Context, inv *task.Invocation) error {
	logger := ctxlog.FromContext(ctx)

	var in Input
	if err := inv.Decode(&in); err != nil {
		return err
	}
	argv, err := r.command(&in)
	if err != nil {
		return fmt.Errorf("task %s: %w", inv.Ref, err)
	}
	dir, err := workdir(inv, &in)
	if err != nil {
		return err
	}

	cmd := osexec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = environ(inv, in.Env)
	cmd.WaitDelay = 5 * time.Second
	out := newLineWriter(func(line string) {
		logger.Debug("Process output.", "line", line)
		inv.Progressf("%s", line)
	})
	cmd.Stdout = out
	cmd.Stderr = out

	logger.Info("Starting process", "command", argv[0], "dir", dir)
	err = cmd.Run()
	out.Flush()
	if err != nil {
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return fmt.Errorf("%s exited with code %d: %s", argv[0], exitErr.ExitCode(), out.Tail())
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s interrupted: %w", argv[0], ctx.Err())
		}
		return fmt.Errorf("running %s: %w", argv[0], err)
	}
	logger.Info("Process finished", "command", argv[0])
	return nil
}

func (r runner) command(in *Input) ([]string, error) {
	switch {
	case in.Script != "" && !r.scripts:
		return nil, errors.New("script requires exec@1.1 or later")
	case in.Script != "" && len(in.Args) > 0:
		return nil, errors.New("set either args or script, not both")
	case in.Script != "":
		return []string{"sh", "-c", in.Script}, nil
	case len(in.Args) > 0:
		return in.Args, nil
	default:
		return nil, errors.New("missing args")
	}
}

// workdir resolves the process directory. Without an explicit slot the
// default slot is used if bound, otherwise the current directory.
func workdir(inv *task.Invocation, in *Input) (string, error) {
	slot := in.Workspace
	if slot == "" {
		if _, bound := inv.Workspaces[DefaultSlot]; !bound {
			if in.Dir != "" {
				return "", fmt.Errorf("task %s: dir requires a workspace", inv.Ref)
			}
			return "", nil
		}
		slot = DefaultSlot
	}
	base, err := inv.LocalDir(slot)
	if err != nil {
		return "", err
	}
	if in.Dir == "" {
		return base, nil
	}
	if !filepath.IsLocal(in.Dir) {
		return "", fmt.Errorf("task %s: dir %q must stay inside the workspace", inv.Ref, in.Dir)
	}
	return filepath.Join(base, in.Dir), nil
}

func environ(inv *task.Invocation, extra map[string]string) []string {
	env := append(os.Environ(),
		"PIPEGRID_RUN_ID="+inv.RunID,
		"PIPEGRID_PIPELINE="+inv.Pipeline,
		"PIPEGRID_NODE="+inv.Node,
	)
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// Register registers both task versions with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register("exec", "1.0.0", runner{})
	r.Register("exec", "1.1.0", runner{scripts: true})
}
