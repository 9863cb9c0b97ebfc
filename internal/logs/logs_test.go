package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"rollcall/internal/logs"
)

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollcalld.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, offset, err := logs.Tail(path, 2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}

	lines, _, err = logs.Tail(path, 10)
	if err != nil || len(lines) != 3 {
		t.Fatalf("expected all lines, got %#v (%v)", lines, err)
	}
}

func TestTailMissingFile(t *testing.T) {
	lines, offset, err := logs.Tail(filepath.Join(t.TempDir(), "missing.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("expected empty result, got %#v %d %v", lines, offset, err)
	}
}

func TestReadFromSkipsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollcalld.log")
	if err := os.WriteFile(path, []byte("one\ntw"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	lines, offset, err := logs.ReadFrom(path, 0)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(lines) != 1 || lines[0] != "one" || offset != 4 {
		t.Fatalf("unexpected read: %#v offset=%d", lines, offset)
	}

	// Offsets past the end restart after rotation.
	lines, _, err = logs.ReadFrom(path, 999)
	if err != nil || len(lines) != 1 {
		t.Fatalf("expected restart from zero, got %#v (%v)", lines, err)
	}
}

func TestFollowDeliversAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollcalld.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := logs.Tail(path, 1)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 20*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
			cancel()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not return")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "later" {
		t.Fatalf("unexpected followed lines: %#v", got)
	}
}

func TestParseAndFormat(t *testing.T) {
	line := `{"ts":"2026-03-02T10:00:00Z","level":"info","msg":"submission finished","component":"session","session_id":"4f2c9a1b-aaaa","outcome":"marked","student":"Ada Lovelace","http_status":200}`
	entry := logs.Parse(line)
	if !entry.Structured() {
		t.Fatal("expected structured entry")
	}
	if entry.Level != "info" || entry.Component != "session" || entry.Message != "submission finished" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
	out := entry.Format()
	for _, want := range []string{"INFO  session [4f2c9a1b]: submission finished", "http_status=200", `student="Ada Lovelace"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}

	raw := logs.Parse("not json")
	if raw.Structured() || raw.Format() != "not json" {
		t.Fatalf("expected raw passthrough, got %#v", raw)
	}
}

func TestFilterMatch(t *testing.T) {
	warn := logs.Parse(`{"level":"warn","msg":"x","component":"daemon"}`)
	debug := logs.Parse(`{"level":"debug","msg":"y","component":"session"}`)

	tests := []struct {
		name   string
		filter logs.Filter
		entry  logs.Entry
		want   bool
	}{
		{"no filter", logs.Filter{}, debug, true},
		{"level passes", logs.Filter{Level: "info"}, warn, true},
		{"level blocks", logs.Filter{Level: "info"}, debug, false},
		{"component matches", logs.Filter{Component: "Daemon"}, warn, true},
		{"component blocks", logs.Filter{Component: "daemon"}, debug, false},
		{"raw always passes", logs.Filter{Level: "error"}, logs.Parse("plain"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Match(tc.entry); got != tc.want {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
		})
	}
}
