package api

import (
	"testing"
	"time"

	"rollcall/internal/journal"
	"rollcall/internal/session"
	"rollcall/internal/status"
	"rollcall/internal/submit"
)

func TestFromSnapshotDefaultsCategory(t *testing.T) {
	got := FromSnapshot(status.Snapshot{})
	if got.Category != "neutral" || got.UpdatedAt != "" {
		t.Fatalf("unexpected empty display %+v", got)
	}

	at := time.Date(2026, 4, 1, 8, 30, 0, 123e6, time.FixedZone("X", 3600))
	got = FromSnapshot(status.Snapshot{
		Display:   status.Display{Message: "Marked (Alice)", Category: status.Success},
		UpdatedAt: at,
	})
	if got.Category != "success" || got.UpdatedAt != "2026-04-01T07:30:00.123Z" {
		t.Fatalf("unexpected display %+v", got)
	}
	if !ParseTime(got.UpdatedAt).Equal(at) {
		t.Fatalf("ParseTime(%q) mismatch", got.UpdatedAt)
	}
}

func TestFromSessionInfo(t *testing.T) {
	got := FromSessionInfo(session.Info{State: session.Live, SessionID: "abc", Device: "/dev/video0", Accepted: 3})
	if got.State != "live" || got.SessionID != "abc" || got.Accepted != 3 || got.StartedAt != "" {
		t.Fatalf("unexpected session status %+v", got)
	}
}

func TestFromEntries(t *testing.T) {
	entries := []journal.Entry{
		{ID: 2, SessionID: "s", Payload: "b", Outcome: submit.KindRejected, Message: "Unknown code"},
		{ID: 1, SessionID: "s", Payload: "a", Outcome: submit.KindMarked, Student: "Alice"},
	}
	got := FromEntries(entries)
	if len(got) != 2 || got[0].ID != 2 || got[1].Outcome != "marked" || got[1].Student != "Alice" {
		t.Fatalf("unexpected conversion %+v", got)
	}
	if ParseTime("garbage") != (time.Time{}) {
		t.Fatal("expected zero time for invalid input")
	}
}
