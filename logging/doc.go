// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer FleetLogger with contextual
// helpers (component, task, agent) and domain specific helpers for model
// invocations and batch runs.
package logging
