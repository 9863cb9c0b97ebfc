package ipc

import "rollcall/internal/api"

// serviceName is the JSON-RPC receiver name.
const serviceName = "Rollcall"

// Display mirrors the API status line.
type Display = api.Display

// SessionStatus mirrors the API session summary.
type SessionStatus = api.SessionStatus

// ScanEntry mirrors the API journal entry.
type ScanEntry = api.ScanEntry

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// StartRequest starts the scan session.
type StartRequest struct{}

// StartResponse reports the session after a start request.
type StartResponse struct {
	Started bool          `json:"started"`
	Message string        `json:"message"`
	Session SessionStatus `json:"session"`
	Display Display       `json:"display"`
}

// StopRequest stops the scan session.
type StopRequest struct{}

// StopResponse reports the session after a stop request.
type StopResponse struct {
	Stopped bool          `json:"stopped"`
	Message string        `json:"message"`
	Session SessionStatus `json:"session"`
	Display Display       `json:"display"`
}

// ResetRequest readies the session for the next scan.
type ResetRequest struct{}

// ResetResponse reports the session after a reset.
type ResetResponse struct {
	Session SessionStatus `json:"session"`
	Display Display       `json:"display"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the daemon status snapshot.
type StatusResponse = api.DaemonStatus

// HistoryRequest pages the scan journal.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse lists journal entries, newest first.
type HistoryResponse struct {
	Entries        []ScanEntry `json:"entries"`
	JournalEnabled bool        `json:"journal_enabled"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification dispatch.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Acknowledged bool `json:"acknowledged"`
}
