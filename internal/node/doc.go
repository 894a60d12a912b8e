// Package node defines the per-node execution state of a run and its legal
// transitions.
//
// States only move forward:
//
//	Pending -> Ready -> Running -> Succeeded | Failed
//	Pending -> Skipped
//	Ready   -> Skipped
//
// Succeeded, Failed and Skipped are terminal. No state is ever revisited.
package node
