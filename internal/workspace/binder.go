package workspace

import (
	"context"
	"sort"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
)

// Bound maps a node's local slot names to their concrete locations.
type Bound map[string]Location

// Path returns the location path bound to a slot.
func (b Bound) Path(slot string) (string, bool) {
	loc, ok := b[slot]
	return loc.Path, ok
}

// Binder resolves node workspace slots against one run's bindings.
type Binder struct {
	run     Bindings
	probers map[string]Prober
}

// NewBinder returns a binder over the run's bindings. Locations whose scheme
// has a registered prober are probed each time they are bound; other schemes
// are accepted as given.
func NewBinder(run Bindings, probers map[string]Prober) *Binder {
	if run == nil {
		run = Bindings{}
	}
	return &Binder{run: run, probers: probers}
}

// Bind looks up the run binding for every slot the node declares. Slots are
// visited in sorted order so the first error reported is deterministic.
func (b *Binder) Bind(ctx context.Context, spec *config.TaskNodeSpec) (Bound, error) {
	slots := make([]string, 0, len(spec.Workspaces))
	for slot := range spec.Workspaces {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	out := make(Bound, len(slots))
	for _, slot := range slots {
		ws := spec.Workspaces[slot]
		loc, ok := b.run[ws]
		if !ok {
			return nil, &WorkspaceError{Kind: ErrUnboundWorkspace, Node: spec.Name, Slot: slot, Workspace: ws}
		}
		if p, ok := b.probers[loc.Scheme]; ok {
			if err := p.Probe(ctx, loc); err != nil {
				return nil, &WorkspaceError{Kind: ErrUnavailableWorkspace, Node: spec.Name, Slot: slot,
					Workspace: ws, Location: loc.URI, Err: err}
			}
		}
		ctxlog.FromContext(ctx).Debug("Bound workspace.", "node", spec.Name, "slot", slot, "workspace", ws, "location", loc.URI)
		out[slot] = loc
	}
	return out, nil
}
