package inmemorystore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/nodestore"
)

// Store keeps one entry per node in a sync.Map. The key space is fixed once
// Init has run, and each entry carries its own lock, so transitions of
// different nodes never contend.
type Store struct {
	entries sync.Map // Key: node name, Value: *entry
	now     func() time.Time
}

type entry struct {
	mu  sync.Mutex
	rec node.Record
}

// New creates a new, empty in-memory node state store.
func New() *Store {
	return &Store{now: time.Now}
}

var _ nodestore.Store = (*Store)(nil)

func (s *Store) Init(_ context.Context, names []string) error {
	s.entries.Clear()
	for _, name := range names {
		if _, loaded := s.entries.LoadOrStore(name, &entry{}); loaded {
			return fmt.Errorf("node '%s' registered twice", name)
		}
	}
	return nil
}

func (s *Store) load(name string) (*entry, error) {
	v, ok := s.entries.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w '%s'", nodestore.ErrUnknownNode, name)
	}
	return v.(*entry), nil
}

func (s *Store) Transition(_ context.Context, name string, from, to node.State, cause error) error {
	e, err := s.load(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.State != from || !from.CanTransitionTo(to) {
		return &node.TransitionError{Node: name, From: from, To: to, Actual: e.rec.State}
	}
	e.rec.State = to
	switch {
	case to == node.Running:
		e.rec.StartedAt = s.now()
	case to.Terminal():
		e.rec.FinishedAt = s.now()
		e.rec.Err = cause
	}
	return nil
}

func (s *Store) Get(_ context.Context, name string) (node.Record, error) {
	e, err := s.load(name)
	if err != nil {
		return node.Record{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, nil
}

func (s *Store) Snapshot(_ context.Context) (map[string]node.Record, error) {
	out := make(map[string]node.Record)
	s.entries.Range(func(k, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		out[k.(string)] = e.rec
		e.mu.Unlock()
		return true
	})
	return out, nil
}
