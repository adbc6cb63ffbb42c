// Package core defines the shared vocabulary of the agentfleet framework:
// agent configurations, tasks and their results, the classified error
// taxonomy and the concurrency gate used by the execution engine.
//
// The package is intentionally dependency-light so that every other package
// (providers, clients, registry, engine, coordinator) can import it without
// cycles. Values defined here are immutable after construction unless their
// documentation states otherwise.
package core
