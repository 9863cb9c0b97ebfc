package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"rollcall/internal/config"
	"rollcall/internal/daemon"
	"rollcall/internal/decoder"
	"rollcall/internal/ipc"
	"rollcall/internal/logging"
	"rollcall/internal/session"
	"rollcall/internal/status"
	"rollcall/internal/submit"
	"rollcall/internal/testsupport"
)

type nopScheduler struct{}

func (nopScheduler) Schedule(time.Duration, session.Action) {}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	session    *session.Session
	decoder    *testsupport.FakeDecoder
	socketPath string
	configPath string
	shutdown   chan struct{}
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t, testsupport.WithCameraDevice("video0"))
	cfg.Paths.APIBind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(homeDir, ".config", "rollcall", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenJournal(t, cfg)
	board := status.NewBoard()
	dec := &testsupport.FakeDecoder{}
	sess := session.New(session.Options{
		Factory: testsupport.FakeFactory(dec),
		Camera:  decoder.Camera{Device: cfg.CameraDevice()},
		Submitter: submit.SubmitterFunc(func(_ context.Context, payload string) submit.Outcome {
			if payload == "bad" {
				return submit.Rejected("Invalid QR code.")
			}
			return submit.Marked("Student "+payload, "Attendance marked")
		}),
		Reporter:  board,
		Scheduler: nopScheduler{},
		Observers: []session.Observer{store},
	})

	logger := logging.NewNop()
	d, err := daemon.New(daemon.Options{
		Config:  cfg,
		Session: sess,
		Board:   board,
		Journal: store,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon Start: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	shutdown := make(chan struct{})
	var srv *ipc.Server
	var closeOnce sync.Once
	closeServer := func() {
		closeOnce.Do(func() {
			if srv != nil {
				srv.Close()
			}
		})
	}
	srv, err = ipc.NewServer(ctx, socketPath, d, logger, func() {
		closeServer()
		close(shutdown)
	})
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		closeServer()
		d.Stop()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		session:    sess,
		decoder:    dec,
		socketPath: socketPath,
		configPath: configPath,
		shutdown:   shutdown,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nlog_dir = %q\napi_bind = %q\n\n[endpoint]\nurl = %q\ncookie_file = %q\n\n[camera]\ndevice = %q\n\n[journal]\nenabled = true\n",
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Endpoint.URL,
		cfg.Endpoint.CookieFile,
		cfg.Camera.Device,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", substr, output)
	}
}
