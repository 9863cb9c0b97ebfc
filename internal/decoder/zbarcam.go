package decoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/text/unicode/norm"

	"rollcall/internal/logging"
)

const (
	// DefaultBinary is the zbar camera scanner.
	DefaultBinary = "zbarcam"
	// DefaultSettle is how long a freshly started process must survive.
	DefaultSettle = 750 * time.Millisecond
	stopGrace     = 2 * time.Second
)

// ZbarcamOptions configures the zbarcam decoder.
type ZbarcamOptions struct {
	Binary string
	// LockDir holds per-device lock files. Empty disables device locking.
	LockDir string
	Settle  time.Duration
	Logger  *slog.Logger
	// Launcher overrides subprocess creation (tests).
	Launcher Launcher
	// LookPath overrides binary resolution (tests).
	LookPath func(string) (string, error)
}

// NewZbarcamFactory returns a Factory producing zbarcam decoders. Binary
// resolution happens on every call so installing zbar-tools while the daemon
// runs is picked up by the next start.
func NewZbarcamFactory(opts ZbarcamOptions) Factory {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = DefaultBinary
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	launcher := opts.Launcher
	if launcher == nil {
		launcher = commandLauncher{}
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(target string) (Decoder, error) {
		resolved, err := lookPath(binary)
		if err != nil {
			return nil, fmt.Errorf("%w: %s not found: %v", ErrUnavailable, binary, err)
		}
		return &Zbarcam{
			binary:   resolved,
			target:   target,
			lockDir:  opts.LockDir,
			settle:   settle,
			launcher: launcher,
			logger:   logging.NewComponentLogger(logger, "decoder").With(logging.String("target", target)),
			now:      time.Now,
		}, nil
	}
}

// Zbarcam decodes QR codes from a V4L2 device through a zbarcam subprocess.
type Zbarcam struct {
	binary   string
	target   string
	lockDir  string
	settle   time.Duration
	launcher Launcher
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	proc     Process
	lock     *flock.Flock
	stopping bool

	emitMu   sync.Mutex
	interval time.Duration
	lastEmit time.Time
	onDecode DecodeFunc
}

// Args builds the zbarcam command line.
func Args(camera Camera, scan ScanConfig) []string {
	args := []string{"--raw", "--nodisplay", "-Sdisable", "-Sqrcode.enable"}
	if scan.BoxWidth > 0 && scan.BoxHeight > 0 {
		args = append(args, fmt.Sprintf("--prescale=%dx%d", scan.BoxWidth, scan.BoxHeight))
	}
	return append(args, camera.Device)
}

// Start launches zbarcam and waits out the settle window. A process that exits
// inside the window is reported as a start failure.
func (z *Zbarcam) Start(ctx context.Context, camera Camera, scan ScanConfig, onDecode DecodeFunc, onError ErrorFunc) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.proc != nil {
		return errors.New("decoder already started")
	}
	device := strings.TrimSpace(camera.Device)
	if device == "" {
		return errors.New("camera device not resolved")
	}
	camera.Device = device

	if err := z.acquireDevice(device); err != nil {
		return err
	}

	z.emitMu.Lock()
	z.onDecode = onDecode
	z.lastEmit = time.Time{}
	z.interval = 0
	if scan.FPS > 0 {
		z.interval = time.Second / time.Duration(scan.FPS)
	}
	z.emitMu.Unlock()

	args := Args(camera, scan)
	proc, err := z.launcher.Launch(z.binary, args, z.handleLine)
	if err != nil {
		z.releaseDevice()
		return fmt.Errorf("launch %s: %w", filepath.Base(z.binary), err)
	}
	z.logger.Debug("decoder launched",
		logging.String("device", device),
		logging.String("facing", camera.Facing),
		logging.String("args", strings.Join(args, " ")),
	)

	timer := time.NewTimer(z.settle)
	defer timer.Stop()
	select {
	case <-proc.Done():
		z.releaseDevice()
		return exitError(proc)
	case <-ctx.Done():
		_ = proc.Close()
		z.releaseDevice()
		return ctx.Err()
	case <-timer.C:
	}

	z.proc = proc
	z.stopping = false
	go z.watch(proc, onError)
	return nil
}

// Stop terminates the subprocess, escalating to a kill after a grace period.
func (z *Zbarcam) Stop(ctx context.Context) error {
	z.mu.Lock()
	proc := z.proc
	z.stopping = true
	z.mu.Unlock()
	if proc == nil {
		return nil
	}

	select {
	case <-proc.Done():
		return nil
	default:
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		z.logger.Debug("decoder terminate signal failed", logging.Error(err))
	}
	timer := time.NewTimer(stopGrace)
	defer timer.Stop()
	select {
	case <-proc.Done():
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("kill decoder: %w", err)
	}
	return nil
}

// Clear releases the process pipes and the device lock. It is safe to call
// without a prior Stop.
func (z *Zbarcam) Clear(context.Context) error {
	z.mu.Lock()
	proc := z.proc
	z.proc = nil
	z.stopping = true
	z.mu.Unlock()

	var err error
	if proc != nil {
		err = proc.Close()
	}
	z.emitMu.Lock()
	z.onDecode = nil
	z.emitMu.Unlock()

	z.mu.Lock()
	z.releaseDevice()
	z.mu.Unlock()
	return err
}

func (z *Zbarcam) handleLine(line string) {
	text := strings.TrimSpace(norm.NFC.String(line))
	if text == "" {
		return
	}
	z.emitMu.Lock()
	now := z.now()
	if z.interval > 0 && !z.lastEmit.IsZero() && now.Sub(z.lastEmit) < z.interval {
		z.emitMu.Unlock()
		return
	}
	z.lastEmit = now
	fn := z.onDecode
	z.emitMu.Unlock()
	if fn != nil {
		fn(text)
	}
}

func (z *Zbarcam) watch(proc Process, onError ErrorFunc) {
	<-proc.Done()
	z.mu.Lock()
	intentional := z.stopping || z.proc != proc
	z.mu.Unlock()
	if intentional {
		return
	}
	err := exitError(proc)
	z.logger.Debug("decoder exited unexpectedly", logging.Error(err))
	if onError != nil {
		onError(err)
	}
}

// acquireDevice takes the per-device lock. Callers hold z.mu.
func (z *Zbarcam) acquireDevice(device string) error {
	if strings.TrimSpace(z.lockDir) == "" {
		return nil
	}
	lock := flock.New(filepath.Join(z.lockDir, lockName(device)))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock camera %s: %w", device, err)
	}
	if !locked {
		return fmt.Errorf("camera %s is in use by another scanner", device)
	}
	z.lock = lock
	return nil
}

// releaseDevice drops the per-device lock. Callers hold z.mu.
func (z *Zbarcam) releaseDevice() {
	if z.lock == nil {
		return
	}
	if err := z.lock.Unlock(); err != nil {
		z.logger.Debug("camera lock release failed", logging.Error(err))
	}
	z.lock = nil
}

func lockName(device string) string {
	name := strings.Trim(strings.ReplaceAll(device, "/", "-"), "-")
	if name == "" {
		name = "camera"
	}
	return "camera-" + name + ".lock"
}

func exitError(proc Process) error {
	detail := proc.Stderr()
	err := proc.Err()
	switch {
	case detail != "" && err != nil:
		return fmt.Errorf("%w: %s: %w", ErrExited, detail, err)
	case detail != "":
		return fmt.Errorf("%w: %s", ErrExited, detail)
	case err != nil:
		return fmt.Errorf("%w: %w", ErrExited, err)
	default:
		return ErrExited
	}
}
