// Package daemon coordinates the long-running rollcall process and its system
// integration points.
//
// It wires the scan session, the status board, the scan journal and the
// camera hotplug monitor into a single lifecycle with flock-based locking to
// prevent multiple instances. The HTTP API exposes session control and a live
// status stream; IPC calls land on the same Daemon methods.
//
// Keep orchestration here: scanning semantics live in internal/session.
package daemon
