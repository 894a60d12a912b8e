// Package engine is the run controller. It validates a pipeline definition
// against the supplied parameters and task registry, runs the main graph
// through the scheduler, runs the finalizer unconditionally, and assembles
// the RunResult.
//
// A definition that cannot be validated never reaches the scheduler: the
// run ends with a configuration error and the finalizer does not run.
package engine
