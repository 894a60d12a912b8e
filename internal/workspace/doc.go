// Package workspace binds a node's local workspace slots to the concrete
// storage locations supplied for a run.
//
// Workspaces are shared and externally owned. The binder only guarantees that
// a binding exists, and optionally that its location is reachable, before a
// node starts. It provides no locking: nodes running concurrently against the
// same workspace must use disjoint sub-paths or coordinate among themselves.
package workspace
