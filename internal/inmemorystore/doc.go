// Package inmemorystore provides a thread-safe, in-memory implementation
// of the nodestore.Store interface. It holds the state of one run and is
// discarded with it.
package inmemorystore
