// Package finalizer runs a pipeline's terminal cleanup stage.
//
// The finalizer runs exactly once per run, after the main graph reaches a
// terminal outcome, whatever that outcome is. It runs on a context detached
// from run cancellation, so cancelling a run never bypasses cleanup. Its own
// result is recorded separately and never rewrites the main graph's outcome.
package finalizer
