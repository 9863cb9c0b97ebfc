// Package session runs the scan session state machine.
//
// A Session owns at most one decoder handle. It moves Idle → Starting → Live
// → Stopping → Idle, filters decodes through a dedup gate, submits accepted
// payloads concurrently, and reports every transition and outcome as a single
// status line. Completed scans are handed to Observers (journal, notifications)
// and successful ones schedule a Reset that readies the session for the next
// student.
package session
