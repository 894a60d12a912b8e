package metrics

import "time"

// Recorder defines observability hooks for runs and their nodes. All methods
// must be safe to call from multiple goroutines.
type Recorder interface {
	ObserveNodeDuration(node string, d time.Duration)
	// IncNodeResult counts a node reaching a terminal state
	// (Succeeded, Failed or Skipped).
	IncNodeResult(node, state string)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(status string)
	IncFinalizerResult(state string)
	SetRunningNodes(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveNodeDuration(string, time.Duration) {}
func (NoopRecorder) IncNodeResult(string, string)              {}
func (NoopRecorder) ObserveRunDuration(time.Duration)          {}
func (NoopRecorder) IncRunOutcome(string)                      {}
func (NoopRecorder) IncFinalizerResult(string)                 {}
func (NoopRecorder) SetRunningNodes(int)                       {}
