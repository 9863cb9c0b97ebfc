package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"rollcall/internal/config"
	"rollcall/internal/decoder"
	"rollcall/internal/journal"
	"rollcall/internal/session"
	"rollcall/internal/status"
	"rollcall/internal/submit"
	"rollcall/internal/testsupport"
)

type heldScheduler struct {
	mu      sync.Mutex
	actions []session.Action
}

func (s *heldScheduler) Schedule(_ time.Duration, action session.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
}

func (s *heldScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

type daemonFixture struct {
	cfg     *config.Config
	daemon  *Daemon
	decoder *testsupport.FakeDecoder
	board   *status.Board
	journal *journal.Store
	sched   *heldScheduler
}

func newDaemonFixture(t *testing.T, opts ...testsupport.ConfigOption) *daemonFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenJournal(t, cfg)
	dec := &testsupport.FakeDecoder{}
	board := status.NewBoard()
	sched := &heldScheduler{}
	submitter := submit.SubmitterFunc(func(_ context.Context, payload string) submit.Outcome {
		if payload == "bad" {
			return submit.Rejected("Invalid QR code.")
		}
		return submit.Marked("Student "+payload, "Attendance marked")
	})
	sess := session.New(session.Options{
		Factory:   testsupport.FakeFactory(dec),
		Camera:    decoder.Camera{Facing: cfg.Camera.Facing, Device: cfg.CameraDevice()},
		Submitter: submitter,
		Reporter:  board,
		Cooldown:  cfg.DedupCooldown(),
		Scheduler: sched,
		Observers: []session.Observer{store},
	})
	d, err := New(Options{Config: cfg, Session: sess, Board: board, Journal: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Stop() })
	return &daemonFixture{cfg: cfg, daemon: d, decoder: dec, board: board, journal: store, sched: sched}
}
