// Package dag turns a pipeline definition's task list and run_after
// references into a validated, immutable adjacency structure.
//
// Build is pure and deterministic: the same definition always yields the
// same graph, the same topological order and, on failure, the same error.
// Ties in topological order are broken by declaration order.
package dag
