package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"rollcall/internal/api"
	"rollcall/internal/config"
	"rollcall/internal/ipc"
	"rollcall/internal/journal"
	"rollcall/internal/preflight"
	"rollcall/internal/session"
	"rollcall/internal/status"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached rollcall daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureRunning connects to the daemon, launching it first when the socket
// is unreachable. It reports whether a launch happened.
func EnsureRunning(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (*ipc.Client, bool, error) {
	client, err := ipc.Dial(socketPath)
	if err == nil {
		return client, false, nil
	}
	if !isDaemonUnavailable(err) {
		return nil, false, err
	}
	if launchErr := Launch(executablePath, opts); launchErr != nil {
		return nil, false, launchErr
	}
	client, err = WaitForClient(socketPath, waitTimeout)
	if err != nil {
		return nil, true, err
	}
	return client, true, nil
}

// StartSession makes sure the daemon runs and asks it to start scanning.
func StartSession(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (*ipc.StartResponse, bool, error) {
	client, launched, err := EnsureRunning(socketPath, executablePath, opts, waitTimeout)
	if err != nil {
		return nil, launched, err
	}
	defer client.Close()

	resp, err := client.Start()
	if err != nil {
		return nil, launched, err
	}
	// The daemon may already have started the camera itself in kiosk mode.
	if !resp.Started && resp.Session.State == session.Live.String() {
		resp.Started = true
	}
	return resp, launched, nil
}

// StopSession asks a running daemon to stop scanning.
func StopSession(socketPath string) (*ipc.StopResponse, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return nil, ErrDaemonNotRunning
		}
		return nil, err
	}
	defer client.Close()
	return client.Stop()
}

// WaitForShutdown waits for daemon IPC to disappear.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
			time.Sleep(200 * time.Millisecond)
			continue
		}
		_ = client.Close()
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop: timeout waiting for shutdown")
}

// ProcessInfo returns whether daemon IPC is reachable and the daemon PID when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	st, statusErr := client.Status()
	if statusErr != nil {
		return true, 0, statusErr
	}
	return true, st.PID, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans the pid
// and socket files.
func ForceKillProcess(pidPath, socketPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if socketPath != "" {
		_ = os.Remove(socketPath)
	}
	return pid, nil
}

// ShutdownResult captures daemon shutdown outcome.
type ShutdownResult struct {
	Acknowledged bool
	ForcedKill   bool
	PID          int
}

// Shutdown asks the daemon to exit and force-kills it if it is still alive
// after gracePeriod.
func Shutdown(socketPath string, cfg *config.Config, gracePeriod time.Duration) (ShutdownResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return ShutdownResult{}, ErrDaemonNotRunning
		}
		return ShutdownResult{}, err
	}
	pid := 0
	if st, statusErr := client.Status(); statusErr == nil && st != nil {
		pid = st.PID
	}
	resp, err := client.Shutdown()
	_ = client.Close()
	if err != nil {
		return ShutdownResult{}, err
	}
	result := ShutdownResult{Acknowledged: resp.Acknowledged, PID: pid}

	if WaitForShutdown(socketPath, gracePeriod) == nil {
		return result, nil
	}
	alive, livePID, aliveErr := ProcessInfo(socketPath)
	if aliveErr != nil || !alive {
		return result, nil
	}
	if livePID != 0 {
		pid = livePID
	}
	killedPID, killErr := ForceKillProcess(cfg.PIDPath(), socketPath, pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// BuildStatusSnapshot collects daemon status, falling back to the journal and
// local dependency checks when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*ipc.StatusResponse, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			return resp, nil
		}
	}

	resp := &ipc.StatusResponse{
		LockFilePath: cfg.LockPath(),
		Session: api.SessionStatus{
			State:  session.Idle.String(),
			Device: cfg.CameraDevice(),
		},
		Display:      api.FromDisplay(status.Display{Message: "Daemon not running.", Category: status.Neutral}),
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(cfg)),
	}
	if cfg.Journal.Enabled {
		if _, statErr := os.Stat(cfg.JournalPath()); statErr == nil {
			resp.JournalPath = cfg.JournalPath()
			queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if store, openErr := journal.Open(cfg, nil); openErr == nil {
				if counts, statsErr := store.Stats(queryCtx); statsErr == nil && len(counts) > 0 {
					resp.OutcomeCounts = make(map[string]int, len(counts))
					for kind, n := range counts {
						resp.OutcomeCounts[string(kind)] = n
					}
				}
				_ = store.Close()
			}
		}
	}
	return resp, nil
}

// ReadHistory returns journal entries from the daemon, or straight from the
// journal file when the daemon is offline.
func ReadHistory(ctx context.Context, socketPath string, cfg *config.Config, limit int) ([]api.ScanEntry, error) {
	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		resp, histErr := client.History(limit)
		if histErr != nil {
			return nil, histErr
		}
		return resp.Entries, nil
	}
	if !isDaemonUnavailable(err) {
		return nil, err
	}
	if cfg == nil || !cfg.Journal.Enabled {
		return nil, nil
	}
	if _, statErr := os.Stat(cfg.JournalPath()); statErr != nil {
		return nil, nil
	}
	store, err := journal.Open(cfg, nil)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	entries, err := store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return api.FromEntries(entries), nil
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
