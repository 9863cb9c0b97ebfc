package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"rollcall/internal/config"
	"rollcall/internal/daemon"
	"rollcall/internal/decoder"
	"rollcall/internal/deps"
	"rollcall/internal/ipc"
	"rollcall/internal/journal"
	"rollcall/internal/logging"
	"rollcall/internal/notifications"
	"rollcall/internal/session"
	"rollcall/internal/status"
	"rollcall/internal/submit"
	"rollcall/internal/token"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string

	// Console prints every status update to stdout.
	Console bool

	// SocketPath overrides the IPC socket location.
	SocketPath string
}

// Components are the collaborators the daemon is built from.
type Components struct {
	Session  *session.Session
	Board    *status.Board
	Journal  *journal.Store
	Notifier notifications.Service
	Tokens   *token.CookieProvider
}

// Close releases the journal.
func (c *Components) Close() error {
	if c == nil || c.Journal == nil {
		return nil
	}
	return c.Journal.Close()
}

// Assemble wires token lookup, submission, decoding, journaling and
// notifications into a scan session. Extra reporters receive every status
// update next to the board.
func Assemble(cfg *config.Config, logger *slog.Logger, reporters ...status.Reporter) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	tokens := token.NewCookieProvider(cfg.Endpoint.TokenCookie, token.FirstOf(
		token.FileSource(cfg.Endpoint.CookieFile),
		token.EnvSource(token.CookieEnv),
	))
	client := submit.New(submit.Options{
		Endpoint:    cfg.Endpoint.URL,
		TokenHeader: cfg.Endpoint.TokenHeader,
		SendCookies: cfg.Endpoint.SendCookies,
		Timeout:     cfg.EndpointTimeout(),
		Logger:      logger,
	}, tokens)

	var store *journal.Store
	if cfg.Journal.Enabled {
		opened, err := journal.Open(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open scan journal: %w", err)
		}
		store = opened
	}

	notifier := notifications.NewService(cfg)
	observers := []session.Observer{notifications.Observer(notifier, logger)}
	if store != nil {
		observers = append([]session.Observer{store}, observers...)
	}

	board := status.NewBoard()
	reporter := status.NewFanout(append([]status.Reporter{board}, reporters...)...)

	factory := decoder.NewZbarcamFactory(decoder.ZbarcamOptions{
		Binary:  cfg.Camera.DecoderBinary,
		LockDir: cfg.Paths.LogDir,
		Settle:  cfg.StartSettle(),
		Logger:  logger,
	})

	sess := session.New(session.Options{
		Factory: factory,
		Camera: decoder.Camera{
			Facing: cfg.Camera.Facing,
			Device: cfg.CameraDevice(),
		},
		Scan: decoder.ScanConfig{
			FPS:       cfg.Camera.FPS,
			BoxWidth:  cfg.Camera.BoxWidth,
			BoxHeight: cfg.Camera.BoxHeight,
		},
		Submitter:   client,
		Reporter:    reporter,
		Cooldown:    cfg.DedupCooldown(),
		ResetDelay:  cfg.ResetDelay(),
		AutoRestart: cfg.Session.AutoRestart,
		Observers:   observers,
		Logger:      logger,
	})

	return &Components{
		Session:  sess,
		Board:    board,
		Journal:  store,
		Notifier: notifier,
		Tokens:   tokens,
	}, nil
}

// Run starts the rollcall daemon and blocks until a signal or IPC shutdown.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.RequireEndpoint(); err != nil {
		return err
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rotated, rotateErr := logging.RotateFile(cfg.LogPath())
	if rotateErr != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to rotate daemon log: %v\n", rotateErr)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if rotated != "" {
		logger.Debug("previous daemon log rotated", logging.String("path", rotated))
	}
	logging.PruneOld(logger, cfg.Paths.LogDir, "rollcalld-*.log", cfg.Logging.RetentionDays, cfg.LogPath())
	logDependencySnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var extra []status.Reporter
	if opts.Console {
		extra = append(extra, status.NewConsole(os.Stdout))
	}
	components, err := Assemble(cfg, logger, extra...)
	if err != nil {
		logging.ErrorWithContext(logger, "daemon assembly failed", "daemon_assembly_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir permissions and the journal database"),
		)
		return err
	}

	d, err := daemon.New(daemon.Options{
		Config:   cfg,
		Session:  components.Session,
		Board:    components.Board,
		Journal:  components.Journal,
		Notifier: components.Notifier,
		Logger:   logger,
	})
	if err != nil {
		_ = components.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger, cancel)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running rollcalld and log_dir permissions"),
			logging.String(logging.FieldImpact, "scanning unavailable"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("rollcall daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("endpoint", cfg.Endpoint.URL),
		logging.String("camera_device", cfg.CameraDevice()),
		logging.Bool("camera_present", fileExists(cfg.CameraDevice())),
		logging.Bool("journal_enabled", cfg.Journal.Enabled),
		logging.Bool("notifications_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	for _, dep := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs, logging.Bool(filepath.Base(dep.Command)+"_available", dep.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
