package status

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestBoardKeepsOnlyLatest(t *testing.T) {
	board := NewBoard()
	board.Show(Display{Message: "Camera is live. Scan student QR.", Category: Success})
	board.Show(Display{Message: "Scanner stopped.", Category: Neutral})

	got := board.Current()
	if got.Message != "Scanner stopped." || got.Category != Neutral {
		t.Fatalf("unexpected current display: %#v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("expected update timestamp")
	}
}

func TestBoardSubscribeReceivesCurrentAndUpdates(t *testing.T) {
	board := NewBoard()
	board.Show(Display{Message: "first", Category: Neutral})

	ch, cancel := board.Subscribe()
	defer cancel()

	select {
	case snap := <-ch:
		if snap.Message != "first" {
			t.Fatalf("expected current snapshot first, got %#v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for current snapshot")
	}

	board.Show(Display{Message: "second", Category: Error})
	select {
	case snap := <-ch:
		if snap.Message != "second" || snap.Category != Error {
			t.Fatalf("unexpected update: %#v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
}

func TestBoardSlowSubscriberSeesNewest(t *testing.T) {
	board := NewBoard()
	ch, cancel := board.Subscribe()
	for _, msg := range []string{"a", "b", "c"} {
		board.Show(Display{Message: msg})
	}
	snap := <-ch
	if snap.Message != "c" {
		t.Fatalf("expected newest update, got %q", snap.Message)
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after cancel")
	}
	board.Show(Display{Message: "after cancel"})
}

func TestFanoutSkipsNil(t *testing.T) {
	var seen []string
	fan := NewFanout(nil, ReporterFunc(func(d Display) { seen = append(seen, d.Message) }), nil)
	if len(fan) != 1 {
		t.Fatalf("expected nil reporters dropped, got %d", len(fan))
	}
	fan.Show(Display{Message: "hello"})
	if len(seen) != 1 || seen[0] != "hello" {
		t.Fatalf("unexpected forwards: %v", seen)
	}
}

func TestConsoleRendersPlainForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(&buf)
	console.Show(Display{Message: "Unknown code", Category: Error})
	console.Show(Display{Message: "Scanner stopped.", Category: Neutral})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if lines[0] != "[ERROR] Unknown code" {
		t.Fatalf("unexpected error line: %q", lines[0])
	}
	if lines[1] != "Scanner stopped." {
		t.Fatalf("unexpected neutral line: %q", lines[1])
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatal("expected no ANSI codes for non-terminal writer")
	}
}

func TestRenderColorizes(t *testing.T) {
	line := Render(Display{Message: "Marked (Alice)", Category: Success}, true)
	if !strings.HasPrefix(line, ansiGreen) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected green line, got %q", line)
	}
	if got := Render(Display{Message: "idle", Category: Neutral}, true); got != "idle" {
		t.Fatalf("neutral should not be coloured, got %q", got)
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range []Category{Neutral, Success, Warning, Error} {
		if !c.Valid() {
			t.Fatalf("expected %q valid", c)
		}
	}
	if Category("info").Valid() {
		t.Fatal("expected unknown category invalid")
	}
}
