// Package api defines wire-format types and converters shared by the IPC and
// HTTP API layers. It translates session, status and journal models into
// transport-friendly DTOs so the CLI and kiosk pages render without coupling
// to internal types.
//
// DTOs use camelCase JSON tags for JavaScript consumers. Enums (session state,
// status category, outcome kind) are exposed as lowercase strings and
// timestamps use RFC3339 with milliseconds.
package api
