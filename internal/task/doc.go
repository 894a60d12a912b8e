// Package task defines the contract between the engine and external task
// implementations.
//
// The engine treats a task as a black box: it is invoked with resolved
// parameters and bound workspace locations and reports a single terminal
// outcome through its error return. A task may stream progress messages while
// it runs. Tasks sharing a workspace must not assume exclusive access to it.
package task
