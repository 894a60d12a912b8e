// Package archive persists terminal runs: one summary row per run and one
// row per node, finalizer included. Runs are archived once, after they have
// reached a terminal state, and are never updated afterwards.
package archive
