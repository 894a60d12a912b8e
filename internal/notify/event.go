package notify

import (
	"context"
	"sync"
	"time"

	"github.com/vk/pipegrid/internal/ctxlog"
)

// EventType identifies what a RunEvent reports.
type EventType string

const (
	RunStarted        EventType = "run_started"
	RunFinished       EventType = "run_finished"
	NodeTransition    EventType = "node_transition"
	FinalizerFinished EventType = "finalizer_finished"
	TaskProgress      EventType = "task_progress"
)

// RunEvent is one observable change in a run.
type RunEvent struct {
	Type     EventType `json:"type"`
	RunID    string    `json:"run_id"`
	Pipeline string    `json:"pipeline"`
	Node     string    `json:"node,omitempty"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to,omitempty"`
	// Status is the run or finalizer status for RunFinished and FinalizerFinished.
	Status  string    `json:"status,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// Observer receives run events.
type Observer interface {
	Notify(ctx context.Context, evt RunEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, evt RunEvent)

func (f ObserverFunc) Notify(ctx context.Context, evt RunEvent) { f(ctx, evt) }

// Multi fans an event out to several observers in order.
type Multi []Observer

func (m Multi) Notify(ctx context.Context, evt RunEvent) {
	for _, o := range m {
		if o != nil {
			o.Notify(ctx, evt)
		}
	}
}

// LogObserver writes every event to the context logger at debug level, and
// task progress at info level.
type LogObserver struct{}

func (LogObserver) Notify(ctx context.Context, evt RunEvent) {
	logger := ctxlog.FromContext(ctx)
	if evt.Type == TaskProgress {
		logger.Info("Task progress.", "node", evt.Node, "message", evt.Message)
		return
	}
	logger.Debug("Run event.", "type", string(evt.Type), "node", evt.Node, "from", evt.From, "to", evt.To, "status", evt.Status)
}

// Collector keeps every event it receives. It is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []RunEvent
}

func (c *Collector) Notify(_ context.Context, evt RunEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

// Events returns a copy of the collected events.
func (c *Collector) Events() []RunEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]RunEvent(nil), c.events...)
}

// OfType returns the collected events of one type.
func (c *Collector) OfType(t EventType) []RunEvent {
	var out []RunEvent
	for _, e := range c.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
