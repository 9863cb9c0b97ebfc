package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"

	"rollcall/internal/ipc"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderDisplayLine(t *testing.T) {
	tests := []struct {
		category string
		color    string
	}{
		{"success", ansiGreen},
		{"warning", ansiYellow},
		{"error", ansiRed},
		{"neutral", ansiBlue},
	}
	for _, tc := range tests {
		got := renderDisplayLine(ipc.Display{Message: "hello", Category: tc.category}, true)
		if got != tc.color+"hello"+ansiReset {
			t.Errorf("category %s: got %q", tc.category, got)
		}
	}
	if got := renderDisplayLine(ipc.Display{Message: "plain", Category: "error"}, false); got != "plain" {
		t.Fatalf("expected uncolored line, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []ipc.DependencyStatus{
		{Name: "zbarcam", Available: false},
		{Name: "v4l2-ctl", Available: true, Command: "v4l2-ctl"},
		{Name: "ntfy", Available: false, Optional: true, Detail: "not configured"},
	}
	lines := dependencyLines(deps, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[ERROR] not available") {
		t.Fatalf("expected error detail first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (command: v4l2-ctl)") {
		t.Fatalf("expected ready detail, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN] not configured") {
		t.Fatalf("expected warn detail, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "zbarcam") || strings.Contains(lines[3], "ntfy") {
		t.Fatalf("expected only required deps in missing line, got %q", lines[3])
	}
}

func TestOutcomeRowsSorted(t *testing.T) {
	rows := outcomeRows(map[string]int{"rejected": 2, "already_marked": 1, "marked": 5})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "already marked" || rows[1][0] != "marked" || rows[2][1] != "2" {
		t.Fatalf("unexpected rows %q", rows)
	}
	if outcomeRows(nil) != nil {
		t.Fatal("expected nil rows for empty counts")
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]tableColumn{{Header: "Outcome"}, {Header: "Count", Align: text.AlignRight}}, [][]string{{"marked", "3"}, {"short"}})
	requireContains(t, out, "OUTCOME")
	requireContains(t, out, "marked")
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty table without columns")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
