package api

import (
	"time"

	"rollcall/internal/deps"
	"rollcall/internal/journal"
	"rollcall/internal/session"
	"rollcall/internal/status"
)

// FromSnapshot converts a status board snapshot.
func FromSnapshot(snap status.Snapshot) Display {
	category := string(snap.Category)
	if category == "" {
		category = string(status.Neutral)
	}
	return Display{
		Message:   snap.Message,
		Category:  category,
		UpdatedAt: formatTime(snap.UpdatedAt),
	}
}

// FromDisplay converts a bare display with no timestamp.
func FromDisplay(d status.Display) Display {
	return FromSnapshot(status.Snapshot{Display: d})
}

// FromSessionInfo converts a session snapshot.
func FromSessionInfo(info session.Info) SessionStatus {
	return SessionStatus{
		State:     info.State.String(),
		SessionID: info.SessionID,
		Device:    info.Device,
		StartedAt: formatTime(info.StartedAt),
		Accepted:  info.Accepted,
	}
}

// FromEntry converts a journal entry.
func FromEntry(entry journal.Entry) ScanEntry {
	return ScanEntry{
		ID:          entry.ID,
		SessionID:   entry.SessionID,
		Payload:     entry.Payload,
		Outcome:     string(entry.Outcome),
		Student:     entry.Student,
		Message:     entry.Message,
		HTTPStatus:  entry.HTTPStatus,
		Error:       entry.Error,
		ObservedAt:  formatTime(entry.ObservedAt),
		CompletedAt: formatTime(entry.CompletedAt),
	}
}

// FromEntries converts a journal page, preserving order.
func FromEntries(entries []journal.Entry) []ScanEntry {
	out := make([]ScanEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// ParseTime reads a timestamp written by this package. Invalid or empty
// input yields the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
