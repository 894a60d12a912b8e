package scheduler

import "sync/atomic"

// Outcome is the pipeline-level state of the main graph.
type Outcome int32

const (
	NotStarted Outcome = iota
	Running
	Succeeded
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NotStarted:
		return "NotStarted"
	case Running:
		return "Running"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	}
	return "Unknown"
}

// Terminal reports whether the main graph has finished.
func (o Outcome) Terminal() bool { return o == Succeeded || o == Failed }

type outcomeValue struct{ v atomic.Int32 }

func (o *outcomeValue) Load() Outcome   { return Outcome(o.v.Load()) }
func (o *outcomeValue) Store(v Outcome) { o.v.Store(int32(v)) }
