// Package notify publishes run progress to observers: run start and finish,
// node state changes, finalizer results and progress messages streamed by
// tasks. Observers must not block; the engine calls them inline.
package notify
