package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"rollcall/internal/config"
	"rollcall/internal/deps"
	"rollcall/internal/journal"
	"rollcall/internal/logging"
	"rollcall/internal/notifications"
	"rollcall/internal/session"
	"rollcall/internal/status"
	"rollcall/internal/submit"
)

// ErrJournalDisabled is returned by History when journal.enabled is false.
var ErrJournalDisabled = errors.New("scan journal disabled")

// Options carries the daemon's collaborators.
type Options struct {
	Config   *config.Config
	Session  *session.Session
	Board    *status.Board
	Journal  *journal.Store
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Daemon owns the scan session for the lifetime of the process.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	session  *session.Session
	board    *status.Board
	journal  *journal.Store
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock
	api      *apiServer
	monitor  *cameraMonitor

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Session       session.Info
	Display       status.Snapshot
	JournalPath   string
	LockFilePath  string
	CameraMonitor bool
	OutcomeCounts map[submit.Kind]int
	Dependencies  []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Session == nil || opts.Board == nil {
		return nil, errors.New("daemon requires config, session, and status board")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(opts.Config)
	}
	lockPath := opts.Config.LockPath()
	d := &Daemon{
		cfg:      opts.Config,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		session:  opts.Session,
		board:    opts.Board,
		journal:  opts.Journal,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(opts.Config, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	d.monitor = newCameraMonitor(opts.Config, logger, d.cameraRemoved)
	return d, nil
}

// Start acquires the daemon lock and brings up the API server and camera
// monitor. With session.auto_restart the camera starts immediately.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another rollcall daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}
	if err := d.monitor.Start(d.ctx); err != nil {
		d.logger.Debug("camera monitor unavailable", logging.Error(err))
	}
	d.pruneJournal(d.ctx)

	d.running.Store(true)
	d.logger.Info("rollcall daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("device", d.cfg.CameraDevice()),
	)

	if d.cfg.Session.AutoRestart {
		_ = d.session.Start(d.ctx)
	}
	return nil
}

// Stop tears the session down, waits for in-flight submissions and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	d.session.Teardown(shutdownCtx)
	if err := d.session.WaitContext(shutdownCtx); err != nil {
		d.logger.Warn("in-flight submissions did not finish before shutdown", logging.Error(err))
	}

	d.monitor.Stop()
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("rollcall daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// StartSession starts scanning.
func (d *Daemon) StartSession(ctx context.Context) error {
	return d.session.Start(d.sessionContext(ctx))
}

// StopSession stops scanning.
func (d *Daemon) StopSession(ctx context.Context) error {
	return d.session.Stop(ctx)
}

// ResetSession releases the camera, forgets the last payload and shows the
// ready status, restarting when session.auto_restart is set.
func (d *Daemon) ResetSession(ctx context.Context) {
	d.session.Reset(d.sessionContext(ctx))
}

// APIAddress returns the bound HTTP API address, or "" when the API is off.
func (d *Daemon) APIAddress() string {
	return d.api.addr()
}

// History returns the newest journal entries.
func (d *Daemon) History(ctx context.Context, limit int) ([]journal.Entry, error) {
	if d.journal == nil {
		return nil, ErrJournalDisabled
	}
	return d.journal.List(ctx, limit)
}

// SessionInfo returns the current session snapshot.
func (d *Daemon) SessionInfo() session.Info {
	return d.session.Info()
}

// JournalEnabled reports whether scans are journaled.
func (d *Daemon) JournalEnabled() bool {
	return d.journal != nil
}

// Board exposes the status board for streaming.
func (d *Daemon) Board() *status.Board {
	return d.board
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Session:       d.session.Info(),
		Display:       d.board.Current(),
		LockFilePath:  d.lockPath,
		CameraMonitor: d.monitor.Running(),
		Dependencies:  deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if d.journal != nil {
		st.JournalPath = d.journal.Path()
		if counts, err := d.journal.Stats(ctx); err == nil {
			st.OutcomeCounts = counts
		} else {
			d.logger.Debug("journal stats unavailable", logging.Error(err))
		}
	}
	return st
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// sessionContext keeps session work alive after the triggering request ends;
// decoder processes outlive a single IPC call.
func (d *Daemon) sessionContext(ctx context.Context) context.Context {
	if d.ctx != nil {
		return d.ctx
	}
	return context.WithoutCancel(ctx)
}

func (d *Daemon) cameraRemoved(ctx context.Context, device string) {
	if device != d.cfg.CameraDevice() {
		return
	}
	if d.session.Abort(ctx, session.StatusCameraDisconnected) {
		logging.WarnWithContext(d.logger, "camera disconnected while scanning", "camera_disconnected",
			logging.String("device", device),
			logging.String(logging.FieldErrorHint, "reconnect the camera and start the session again"),
			logging.String(logging.FieldImpact, "scanning stopped"),
		)
	}
}

func (d *Daemon) pruneJournal(ctx context.Context) {
	days := d.cfg.Logging.RetentionDays
	if d.journal == nil || days <= 0 {
		return
	}
	removed, err := d.journal.Prune(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		d.logger.Warn("journal retention failed", logging.Error(err))
		return
	}
	if removed > 0 {
		d.logger.Info("journal pruned",
			logging.String(logging.FieldEventType, "journal_pruned"),
			logging.Int64("removed", removed),
		)
	}
}
