// Package logging assembles structured slog loggers and formatting helpers used
// across jtail.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and defines the standard attribute keys (component, event_type, error_hint,
// impact, run_id). WarnWithContext and ErrorWithContext enforce that warnings
// carry a cause, an impact, and a next step. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
