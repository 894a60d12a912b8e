package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vk/pipegrid/internal/registry"
	"github.com/vk/pipegrid/internal/task"
)

// ErrSimulated is returned by the "fail" task.
var ErrSimulated = errors.New("simulated failure")

// ExecutionRecord holds what one node was invoked with and when it ran.
type ExecutionRecord struct {
	Invocation *task.Invocation
	Start      time.Time
	End        time.Time
}

// RecorderModule registers test tasks that record every invocation:
//
//	record@1.0.0  succeeds, after sleeping for the optional "sleep" duration
//	fail@1.0.0    fails with ErrSimulated
//	block@1.0.0   waits for its context to be cancelled
type RecorderModule struct {
	mu      sync.Mutex
	records map[string]*ExecutionRecord
	order   []string

	// Started, if set, receives each node name as its task starts.
	Started chan string
}

// NewRecorderModule creates an empty recorder.
func NewRecorderModule() *RecorderModule {
	return &RecorderModule{records: make(map[string]*ExecutionRecord)}
}

// Register implements the registry.Module interface.
func (m *RecorderModule) Register(r *registry.Registry) {
	r.RegisterFunc("record", "1.0.0", func(ctx context.Context, inv *task.Invocation) error {
		rec := m.begin(inv)
		defer m.end(rec)
		if d, ok := inv.Params.String("sleep"); ok {
			wait, err := time.ParseDuration(d)
			if err != nil {
				return err
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	r.RegisterFunc("fail", "1.0.0", func(ctx context.Context, inv *task.Invocation) error {
		defer m.end(m.begin(inv))
		return ErrSimulated
	})
	r.RegisterFunc("block", "1.0.0", func(ctx context.Context, inv *task.Invocation) error {
		defer m.end(m.begin(inv))
		<-ctx.Done()
		return ctx.Err()
	})
}

func (m *RecorderModule) begin(inv *task.Invocation) *ExecutionRecord {
	rec := &ExecutionRecord{Invocation: inv, Start: time.Now()}
	m.mu.Lock()
	m.records[inv.Node] = rec
	m.order = append(m.order, inv.Node)
	started := m.Started
	m.mu.Unlock()
	if started != nil {
		started <- inv.Node
	}
	return rec
}

func (m *RecorderModule) end(rec *ExecutionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.End = time.Now()
}

// Ran reports whether the node's task was invoked.
func (m *RecorderModule) Ran(node string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[node]
	return ok
}

// Record returns a copy of the node's execution record.
func (m *RecorderModule) Record(node string) (ExecutionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[node]
	if !ok {
		return ExecutionRecord{}, false
	}
	return *rec, true
}

// Order returns node names in the order their tasks started.
func (m *RecorderModule) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}
