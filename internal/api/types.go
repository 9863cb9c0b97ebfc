package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Display is the status line shown to the operator.
type Display struct {
	Message   string `json:"message"`
	Category  string `json:"category"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// SessionStatus summarizes the scan session.
type SessionStatus struct {
	State     string `json:"state"`
	SessionID string `json:"sessionId,omitempty"`
	Device    string `json:"device"`
	StartedAt string `json:"startedAt,omitempty"`
	Accepted  int    `json:"accepted"`
}

// ScanEntry is one journaled submission.
type ScanEntry struct {
	ID          int64  `json:"id"`
	SessionID   string `json:"sessionId"`
	Payload     string `json:"payload"`
	Outcome     string `json:"outcome"`
	Student     string `json:"student,omitempty"`
	Message     string `json:"message,omitempty"`
	HTTPStatus  int    `json:"httpStatus,omitempty"`
	Error       string `json:"error,omitempty"`
	ObservedAt  string `json:"observedAt,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	JournalPath   string             `json:"journalPath,omitempty"`
	LockFilePath  string             `json:"lockFilePath"`
	CameraMonitor bool               `json:"cameraMonitor"`
	Session       SessionStatus      `json:"session"`
	Display       Display            `json:"display"`
	OutcomeCounts map[string]int     `json:"outcomeCounts,omitempty"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// HistoryResponse wraps journal entries.
type HistoryResponse struct {
	Entries []ScanEntry `json:"entries"`
}

// SessionActionResponse reports the result of a start or stop request.
type SessionActionResponse struct {
	Session SessionStatus `json:"session"`
	Display Display       `json:"display"`
	Error   string        `json:"error,omitempty"`
}
