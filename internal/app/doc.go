// Package app contains the core application logic. It wires the loaders,
// task registry, engine and observability sinks together, decoupled from any
// specific entrypoint like a CLI or server.
package app
