package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/decoder"
	"rollcall/internal/dedup"
	"rollcall/internal/logging"
	"rollcall/internal/status"
	"rollcall/internal/submit"
)

const (
	// DefaultResetDelay leaves the outcome visible before the session resets.
	DefaultResetDelay = 900 * time.Millisecond
	// DefaultTarget names the display region the decoder renders into.
	DefaultTarget = "reader"
)

// DefaultScan matches the kiosk reader geometry.
var DefaultScan = decoder.ScanConfig{FPS: 10, BoxWidth: 250, BoxHeight: 250}

// Options configures a Session.
type Options struct {
	Factory     decoder.Factory
	Target      string
	Camera      decoder.Camera
	Scan        decoder.ScanConfig
	Submitter   submit.Submitter
	Reporter    status.Reporter
	Cooldown    time.Duration
	ResetDelay  time.Duration
	AutoRestart bool
	Scheduler   Scheduler
	Observers   []Observer
	Logger      *slog.Logger
	Clock       func() time.Time
}

type pendingStop int

const (
	noPendingStop pendingStop = iota
	pendingUserStop
	pendingTeardown
	pendingExit
)

// Session is the scan session controller. All methods are safe for concurrent
// use; decoder callbacks may arrive on any goroutine.
type Session struct {
	factory     decoder.Factory
	target      string
	camera      decoder.Camera
	scan        decoder.ScanConfig
	submitter   submit.Submitter
	reporter    status.Reporter
	resetDelay  time.Duration
	autoRestart bool
	scheduler   Scheduler
	observers   []Observer
	logger      *slog.Logger
	clock       func() time.Time
	gate        *dedup.Gate

	mu         sync.Mutex
	state      State
	dec        decoder.Decoder
	generation uint64
	epoch      uint64
	pending    pendingStop
	sessionID  string
	startedAt  time.Time
	accepted   int

	// submissions run on subCtx; Teardown cancels it.
	subCtx    context.Context
	subCancel context.CancelFunc
	inflight  sync.WaitGroup
}

// New builds an idle Session.
func New(opts Options) *Session {
	target := opts.Target
	if target == "" {
		target = DefaultTarget
	}
	scan := opts.Scan
	if scan.FPS <= 0 {
		scan.FPS = DefaultScan.FPS
	}
	if scan.BoxWidth <= 0 || scan.BoxHeight <= 0 {
		scan.BoxWidth, scan.BoxHeight = DefaultScan.BoxWidth, DefaultScan.BoxHeight
	}
	camera := opts.Camera
	if camera.Facing == "" {
		camera.Facing = "environment"
	}
	resetDelay := opts.ResetDelay
	if resetDelay <= 0 {
		resetDelay = DefaultResetDelay
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = status.ReporterFunc(func(status.Display) {})
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	subCtx, subCancel := context.WithCancel(context.Background())
	return &Session{
		subCtx:      subCtx,
		subCancel:   subCancel,
		factory:     opts.Factory,
		target:      target,
		camera:      camera,
		scan:        scan,
		submitter:   opts.Submitter,
		reporter:    reporter,
		resetDelay:  resetDelay,
		autoRestart: opts.AutoRestart,
		scheduler:   scheduler,
		observers:   append([]Observer(nil), opts.Observers...),
		logger:      logging.NewComponentLogger(logger, "session"),
		clock:       clock,
		gate:        dedup.NewGate(opts.Cooldown),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		State:     s.state,
		SessionID: s.sessionID,
		Device:    s.camera.Device,
		StartedAt: s.startedAt,
		Accepted:  s.accepted,
	}
}

// Start acquires a decoder and begins scanning. It is a no-op unless Idle.
// The returned error is already reflected in the status line.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return nil
	}
	if s.factory == nil {
		s.showLocked(StatusLibraryMissing)
		s.mu.Unlock()
		return fmt.Errorf("%w: no decoder factory configured", ErrCapabilityUnavailable)
	}
	dec, err := s.factory(s.target)
	if err != nil {
		s.showLocked(StatusLibraryMissing)
		s.mu.Unlock()
		logging.ErrorWithContext(s.logger, "decoder unavailable", "decoder_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install zbar-tools or set camera.decoder_binary"),
			logging.String(logging.FieldImpact, "scanning cannot start"),
		)
		return fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}

	s.state = Starting
	s.dec = dec
	s.generation++
	gen := s.generation
	s.pending = noPendingStop
	s.sessionID = uuid.NewString()
	sessionID := s.sessionID
	camera := s.camera
	scan := s.scan
	s.mu.Unlock()

	logger := s.logger.With(logging.String(logging.FieldSessionID, sessionID))
	logger.Info("starting camera",
		logging.String(logging.FieldEventType, "session_starting"),
		logging.String("device", camera.Device),
		logging.String("facing", camera.Facing),
		logging.Int("fps", scan.FPS),
	)

	startErr := dec.Start(ctx, camera, scan,
		func(text string) { s.handleDecode(gen, text) },
		func(err error) { s.handleDecodeError(gen, sessionID, err) },
	)

	s.mu.Lock()
	if startErr != nil {
		s.dec = nil
		s.state = Idle
		s.pending = noPendingStop
		s.showLocked(StatusStartFailed)
		s.mu.Unlock()
		_ = dec.Clear(ctx)
		logging.ErrorWithContext(logger, "camera start failed", "camera_start_failed",
			logging.Error(startErr),
			logging.String(logging.FieldErrorHint, "check camera permissions and that no other process holds the device"),
			logging.String(logging.FieldImpact, "scanning is not running"),
		)
		return fmt.Errorf("%w: %v", ErrCameraStartFailure, startErr)
	}

	s.state = Live
	s.startedAt = s.clock()
	switch s.pending {
	case pendingUserStop:
		logger.Info("stop requested during start; stopping")
		return s.releaseLocked(ctx, true)
	case pendingTeardown:
		_ = s.releaseLocked(ctx, false)
		return nil
	case pendingExit:
		_ = s.releaseLocked(ctx, false)
		s.reporter.Show(StatusCameraDisconnected)
		return fmt.Errorf("%w: decoder exited after start", ErrCameraStartFailure)
	}
	s.showLocked(StatusLive)
	s.mu.Unlock()
	logger.Info("camera live", logging.String(logging.FieldEventType, "session_live"))
	return nil
}

// Stop releases the decoder. It is a no-op unless Live or Starting; a stop
// issued while Starting takes effect once the start completes.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Starting:
		s.epoch++
		if s.pending == noPendingStop {
			s.pending = pendingUserStop
		}
		s.mu.Unlock()
		return nil
	case Live:
		s.epoch++
		return s.releaseLocked(ctx, true)
	default:
		s.mu.Unlock()
		return nil
	}
}

// Teardown stops the session without touching the status line and swallows
// every failure. Pending resets and in-flight submissions are cancelled.
func (s *Session) Teardown(ctx context.Context) {
	s.mu.Lock()
	s.epoch++
	s.subCancel()
	s.subCtx, s.subCancel = context.WithCancel(context.Background())
	switch s.state {
	case Starting:
		s.pending = pendingTeardown
		s.mu.Unlock()
	case Live:
		if err := s.releaseLocked(ctx, false); err != nil {
			s.logger.Debug("teardown release failed", logging.Error(err))
		}
	default:
		s.mu.Unlock()
	}
}

// Abort stops a live session and shows reason instead of the normal stop
// status. It reports whether a live session was stopped.
func (s *Session) Abort(ctx context.Context, reason status.Display) bool {
	s.mu.Lock()
	if s.state != Live {
		s.mu.Unlock()
		return false
	}
	s.epoch++
	err := s.releaseLocked(ctx, false)
	if err != nil {
		s.logger.Debug("abort release failed", logging.Error(err))
	}
	s.reporter.Show(reason)
	return true
}

// Reset readies the session for the next scan: the decoder is released, the
// dedup memory cleared and the neutral ready status shown. With auto restart
// a session that was live starts again.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	s.resetLocked(ctx)
}

// resetLocked is called with s.mu held and returns with it released.
func (s *Session) resetLocked(ctx context.Context) {
	s.epoch++
	wasLive := s.state == Live
	switch s.state {
	case Live:
		if err := s.releaseLocked(ctx, false); err != nil {
			s.logger.Debug("reset release failed", logging.Error(err))
		}
		s.mu.Lock()
	case Starting:
		s.pending = pendingTeardown
	}
	s.gate.Reset()
	// A release already under way writes its own status when it finishes.
	if s.state != Stopping {
		s.showLocked(StatusReady)
	}
	s.mu.Unlock()

	s.logger.Info("session reset",
		logging.String(logging.FieldEventType, "session_reset"),
		logging.Bool("auto_restart", s.autoRestart && wasLive),
	)
	if s.autoRestart && wasLive {
		_ = s.Start(ctx)
	}
}

// Wait blocks until in-flight submissions finish.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// WaitContext is Wait bounded by ctx.
func (s *Session) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// releaseLocked moves a Live session through Stopping to Idle. It is called
// with s.mu held and returns with it released.
func (s *Session) releaseLocked(ctx context.Context, report bool) error {
	dec := s.dec
	s.dec = nil
	s.state = Stopping
	s.generation++
	s.pending = noPendingStop
	sessionID := s.sessionID
	s.mu.Unlock()

	var stopErr error
	if dec != nil {
		stopErr = errors.Join(dec.Stop(ctx), dec.Clear(ctx))
	}

	s.mu.Lock()
	s.state = Idle
	s.startedAt = time.Time{}
	if report {
		if stopErr != nil {
			s.showLocked(StatusStopFailed)
		} else {
			s.showLocked(StatusStopped)
		}
	}
	s.mu.Unlock()

	logger := s.logger.With(logging.String(logging.FieldSessionID, sessionID))
	if stopErr != nil {
		logging.WarnWithContext(logger, "camera did not stop cleanly", "camera_stop_failed",
			logging.Error(stopErr),
			logging.String(logging.FieldErrorHint, "the decoder process may need to be killed manually"),
			logging.String(logging.FieldImpact, "camera released with errors"),
		)
		return fmt.Errorf("%w: %v", ErrCameraStopFailure, stopErr)
	}
	logger.Info("camera stopped", logging.String(logging.FieldEventType, "session_stopped"))
	return nil
}

// HandleDecode feeds a decoded payload into the current session as if the
// decoder had produced it.
func (s *Session) HandleDecode(text string) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	s.handleDecode(gen, text)
}

func (s *Session) handleDecode(gen uint64, text string) {
	s.mu.Lock()
	if s.state != Live || gen != s.generation {
		s.mu.Unlock()
		return
	}
	event := dedup.Event{Text: text, ObservedAt: s.clock()}
	if !s.gate.Offer(event) {
		s.mu.Unlock()
		s.logger.Debug("duplicate decode suppressed", logging.Payload(text))
		return
	}
	s.accepted++
	sessionID := s.sessionID
	epoch := s.epoch
	base := s.subCtx
	s.inflight.Add(1)
	s.mu.Unlock()

	go s.submit(base, gen, epoch, sessionID, event)
}

func (s *Session) submit(base context.Context, gen, epoch uint64, sessionID string, event dedup.Event) {
	defer s.inflight.Done()

	ctx := logging.WithSessionID(base, sessionID)
	ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, s.logger)

	var outcome submit.Outcome
	if s.submitter == nil {
		outcome = submit.TransportFailure(errors.New("no submitter configured"))
	} else {
		outcome = s.submitter.Submit(ctx, event.Text)
	}

	correlationID, _ := logging.CorrelationIDFromContext(ctx)
	scan := Scan{
		SessionID:     sessionID,
		CorrelationID: correlationID,
		Payload:       event.Text,
		Outcome:       outcome,
		ObservedAt:    event.ObservedAt,
		CompletedAt:   s.clock(),
	}
	cancelled := ctx.Err() != nil
	for _, obs := range s.observers {
		obs.ScanCompleted(context.WithoutCancel(ctx), scan)
	}

	// An outcome from a stopped session still reaches the status line unless
	// the session was torn down or a newer one has started.
	s.mu.Lock()
	current := gen == s.generation
	if !cancelled && sessionID == s.sessionID {
		s.showLocked(outcome.Display())
	}
	var reset Action
	if current && !cancelled && outcome.EndsSession() {
		reset = s.resetAction(epoch)
	}
	s.mu.Unlock()

	logger.Info("scan processed",
		logging.String(logging.FieldEventType, "scan_processed"),
		logging.Payload(event.Text),
		logging.String("outcome", string(outcome.Kind)),
		logging.String("student", outcome.Student),
		logging.Bool("current_session", current),
	)
	if reset != nil {
		s.scheduler.Schedule(s.resetDelay, reset)
	}
}

func (s *Session) resetAction(epoch uint64) Action {
	return func() {
		s.mu.Lock()
		if epoch != s.epoch {
			s.mu.Unlock()
			return
		}
		s.resetLocked(context.Background())
	}
}

func (s *Session) handleDecodeError(gen uint64, sessionID string, err error) {
	if !errors.Is(err, decoder.ErrExited) {
		s.logger.Debug("decode error ignored",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err),
		)
		return
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	if s.state == Starting && s.pending == noPendingStop {
		s.pending = pendingExit
	}
	if s.state != Live {
		s.mu.Unlock()
		return
	}
	s.epoch++
	if releaseErr := s.releaseLocked(context.Background(), false); releaseErr != nil {
		s.logger.Debug("release after decoder exit failed", logging.Error(releaseErr))
	}
	s.reporter.Show(StatusCameraDisconnected)
	logging.WarnWithContext(s.logger, "decoder exited while live", "decoder_exited",
		logging.String(logging.FieldSessionID, sessionID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the camera connection, then start the session again"),
		logging.String(logging.FieldImpact, "scanning stopped"),
	)
}

func (s *Session) showLocked(d status.Display) {
	s.reporter.Show(d)
}
