// Package print provides the "print" task: it writes its parameters to the
// output, one per line. It is typically used as a finalizer to report the
// pipeline status.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/registry"
	"github.com/vk/pipegrid/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the printed lines. Nil means standard output.
	Out io.Writer

	mu sync.Mutex
}

// Run prints every parameter as `node: name = value` in name order.
// Structured values are rendered as JSON.
func (m *Module) Run(ctx context.Context, inv *task.Invocation) error {
	ctxlog.FromContext(ctx).Info("Printing parameters", "count", len(inv.Params))

	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(inv.Params) == 0 {
		_, err := fmt.Fprintf(out, "%s: (no parameters)\n", inv.Node)
		return err
	}
	for _, name := range inv.Params.Names() {
		val := inv.Params[name]
		var rendered string
		if s, ok := inv.Params.String(name); ok {
			rendered = s
		} else {
			data, err := config.ValueToJSON(val)
			if err != nil {
				return fmt.Errorf("rendering parameter %q: %w", name, err)
			}
			rendered = string(data)
		}
		if _, err := fmt.Fprintf(out, "%s: %s = %s\n", inv.Node, name, rendered); err != nil {
			return err
		}
	}
	return nil
}

// Register registers the task with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register("print", "1.0.0", m)
}
