// Package scheduler walks a validated graph and executes its nodes.
//
// A single coordinator goroutine owns every node-state transition for the
// run. Each Ready node is handed to its own worker goroutine, with no upper
// bound, so all nodes released by a shared predecessor start together.
// Workers report back over a channel and never touch the state store
// themselves.
//
// A node is released only when every predecessor has Succeeded (a strict AND
// fan-in barrier). When a node fails, every node reachable from it is marked
// Skipped without being attempted. Failures never abort sibling nodes that are
// already running.
//
// Cancelling the run context cancels the context of every running node and
// moves every node that has not started to Skipped. The scheduler waits for
// running nodes to return before it reports the outcome.
package scheduler
