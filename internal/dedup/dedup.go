// Package dedup decides whether a freshly decoded payload should be forwarded
// or dropped as a repeat of the previous accepted scan.
//
// A camera held against a static code decodes it many times per second. The
// gate forwards a payload when it differs from the last accepted one or when
// the cooldown has elapsed since that payload was accepted.
package dedup

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum gap before an identical payload is forwarded again.
const DefaultCooldown = 3500 * time.Millisecond

// Event is one successful extraction of text from a camera frame.
type Event struct {
	Text       string
	ObservedAt time.Time
}

// Record remembers the most recently accepted payload.
type Record struct {
	Payload    string
	AcceptedAt time.Time
}

// Empty reports whether nothing has been accepted yet.
func (r Record) Empty() bool {
	return r.Payload == "" && r.AcceptedAt.IsZero()
}

// Admit is the pure decision function. It returns the record to keep and
// whether the candidate should be forwarded. A rejected candidate leaves the
// record unchanged.
func Admit(candidate Event, last Record, cooldown time.Duration) (Record, bool) {
	if candidate.Text != last.Payload || candidate.ObservedAt.Sub(last.AcceptedAt) >= cooldown {
		return Record{Payload: candidate.Text, AcceptedAt: candidate.ObservedAt}, true
	}
	return last, false
}

// Gate applies Admit against a shared record. The record is updated under the
// lock before Offer returns, so concurrent decode callbacks for the same code
// cannot both be forwarded.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     Record
}

// NewGate builds a gate; a non-positive cooldown selects DefaultCooldown.
func NewGate(cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Gate{cooldown: cooldown}
}

// Offer runs the candidate through the gate and reports whether to forward it.
func (g *Gate) Offer(candidate Event) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	next, ok := Admit(candidate, g.last, g.cooldown)
	g.last = next
	return ok
}

// Last returns the current record.
func (g *Gate) Last() Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// Cooldown returns the configured cooldown.
func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}

// Reset forgets the last accepted payload.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.last = Record{}
	g.mu.Unlock()
}
