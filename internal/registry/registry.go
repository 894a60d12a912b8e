package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/task"
)

// Module is the interface that all built-in task modules implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

type entry struct {
	version *semver.Version
	task    task.Task
}

// Registry holds the task implementations available to one application
// instance.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string][]entry // sorted by descending version
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{tasks: make(map[string][]entry)}
}

// Register adds an implementation of the named task at the given semantic
// version. Registering the same name and version twice, or an unparsable
// version, is a programming error and panics.
func (r *Registry) Register(name, version string, t task.Task) {
	v, err := semver.NewVersion(version)
	if err != nil {
		panic(fmt.Sprintf("task '%s': invalid version %q: %v", name, version, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.tasks[name] {
		if e.version.Equal(v) {
			panic(fmt.Sprintf("task '%s@%s' already registered", name, v))
		}
	}
	entries := append(r.tasks[name], entry{version: v, task: t})
	sort.Slice(entries, func(i, j int) bool { return entries[i].version.GreaterThan(entries[j].version) })
	r.tasks[name] = entries
	slog.Debug("Registered task.", "name", name, "version", v.String())
}

// RegisterFunc registers a plain function as a task.
func (r *Registry) RegisterFunc(name, version string, fn task.Func) {
	r.Register(name, version, fn)
}

// Resolve finds the highest registered version of ref.Name satisfying
// ref.Version. An empty version or "latest" selects the highest version.
func (r *Registry) Resolve(ref config.TaskRef) (task.Task, *semver.Version, error) {
	r.mu.RLock()
	entries := r.tasks[ref.Name]
	r.mu.RUnlock()

	if len(entries) == 0 {
		return nil, nil, &RefError{Kind: ErrUnknownTask, Ref: ref}
	}

	want := strings.TrimSpace(ref.Version)
	if want == "" || strings.EqualFold(want, "latest") {
		return entries[0].task, entries[0].version, nil
	}
	c, err := semver.NewConstraint(want)
	if err != nil {
		return nil, nil, &RefError{Kind: ErrInvalidConstraint, Ref: ref, Err: err}
	}
	for _, e := range entries {
		if c.Check(e.version) {
			return e.task, e.version, nil
		}
	}
	return nil, nil, &RefError{Kind: ErrNoMatchingVersion, Ref: ref, Err: fmt.Errorf("available: %s", versions(entries))}
}

// Validate checks that every task reference in def resolves, returning the
// first failure in declaration order (finalizer last).
func (r *Registry) Validate(def *config.Definition) error {
	specs := def.Tasks
	if def.Finally != nil {
		specs = append(specs[:len(specs):len(specs)], def.Finally)
	}
	for _, spec := range specs {
		if _, _, err := r.Resolve(spec.Ref); err != nil {
			if rerr, ok := err.(*RefError); ok {
				rerr.Node = spec.Name
			}
			return err
		}
	}
	return nil
}

// Catalog lists every registered task as "name@version", sorted.
func (r *Registry) Catalog() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name, entries := range r.tasks {
		for _, e := range entries {
			out = append(out, name+"@"+e.version.String())
		}
	}
	sort.Strings(out)
	return out
}

func versions(entries []entry) string {
	vs := make([]string, len(entries))
	for i, e := range entries {
		vs[i] = e.version.String()
	}
	return strings.Join(vs, ", ")
}
