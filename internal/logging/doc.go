// Package logging assembles structured slog loggers and formatting helpers used
// across rollcall.
//
// It owns the console and JSON handlers, routes output to stdout and the
// daemon log file, and exposes context-aware helpers so session code tags log
// lines with the scan session and submission correlation identifiers. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
