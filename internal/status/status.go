// Package status renders the single operator-visible status line.
//
// A Display is overwritten on every session transition and never
// accumulated. Reporters decide where it goes: the in-memory Board backs the
// IPC and HTTP status endpoints, Console prints it to a terminal, and Fanout
// forwards one update to several reporters.
package status

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Category is the presentation hint attached to a status message.
type Category string

const (
	Neutral Category = "neutral"
	Success Category = "success"
	Warning Category = "warning"
	Error   Category = "error"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case Neutral, Success, Warning, Error:
		return true
	}
	return false
}

// Display is the sole externally visible session state.
type Display struct {
	Message  string   `json:"message"`
	Category Category `json:"category"`
}

func (d Display) String() string {
	if d.Category == "" || d.Category == Neutral {
		return d.Message
	}
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(d.Category)), d.Message)
}

// Reporter shows a Display to the operator.
type Reporter interface {
	Show(Display)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Display)

// Show calls f(d).
func (f ReporterFunc) Show(d Display) { f(d) }

// Snapshot is a Display stamped with the time it was shown.
type Snapshot struct {
	Display
	UpdatedAt time.Time `json:"updated_at"`
}

// Board keeps the latest Display and pushes each update to subscribers.
// Slow subscribers drop intermediate updates; only the newest value matters.
type Board struct {
	mu      sync.Mutex
	current Snapshot
	nextID  int
	subs    map[int]chan Snapshot
	now     func() time.Time
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{subs: make(map[int]chan Snapshot), now: time.Now}
}

// Show overwrites the current display and notifies subscribers.
func (b *Board) Show(d Display) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = Snapshot{Display: d, UpdatedAt: b.now()}
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- b.current
	}
}

// Current returns the latest snapshot.
func (b *Board) Current() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Subscribe returns a channel receiving the current snapshot followed by every
// later update, and a cancel function that closes it.
func (b *Board) Subscribe() (<-chan Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Snapshot, 1)
	if !b.current.UpdatedAt.IsZero() {
		ch <- b.current
	}
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Fanout forwards each update to every non-nil reporter in order.
type Fanout []Reporter

// NewFanout drops nil reporters.
func NewFanout(reporters ...Reporter) Fanout {
	out := make(Fanout, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Show forwards d.
func (f Fanout) Show(d Display) {
	for _, r := range f {
		r.Show(d)
	}
}
