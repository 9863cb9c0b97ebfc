package testsupport

import (
	"context"
	"testing"
	"time"

	"rollcall/internal/config"
	"rollcall/internal/journal"
	"rollcall/internal/submit"
)

// MustOpenJournal opens a journal.Store for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg, nil)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AppendScan journals a scan with the given outcome for tests.
func AppendScan(t testing.TB, store *journal.Store, sessionID, payload string, outcome submit.Outcome, at time.Time) journal.Entry {
	t.Helper()

	entry := journal.Entry{
		SessionID:   sessionID,
		Payload:     payload,
		Outcome:     outcome.Kind,
		Student:     outcome.Student,
		Message:     outcome.Display().Message,
		ObservedAt:  at,
		CompletedAt: at,
	}
	id, err := store.Append(context.Background(), entry)
	if err != nil {
		t.Fatalf("journal.Append: %v", err)
	}
	entry.ID = id
	return entry
}
