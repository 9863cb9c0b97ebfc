package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"rollcall/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ROLLCALL_ENDPOINT", "")
	t.Setenv("ROLLCALL_COOKIE_FILE", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "rollcall")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7491" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Endpoint.TokenCookie != "csrftoken" {
		t.Fatalf("unexpected token cookie: %q", cfg.Endpoint.TokenCookie)
	}
	if cfg.Endpoint.TokenHeader != "X-CSRFToken" {
		t.Fatalf("unexpected token header: %q", cfg.Endpoint.TokenHeader)
	}
	if cfg.Camera.Facing != "environment" {
		t.Fatalf("expected rear-facing preference, got %q", cfg.Camera.Facing)
	}
	if cfg.Camera.FPS != 10 {
		t.Fatalf("expected fps 10, got %d", cfg.Camera.FPS)
	}
	if cfg.DedupCooldown() != 3500*time.Millisecond {
		t.Fatalf("unexpected dedup cooldown: %s", cfg.DedupCooldown())
	}
	if cfg.ResetDelay() != 900*time.Millisecond {
		t.Fatalf("unexpected reset delay: %s", cfg.ResetDelay())
	}
	if cfg.EndpointTimeout() != 0 {
		t.Fatalf("expected no endpoint timeout by default, got %s", cfg.EndpointTimeout())
	}
	if err := cfg.RequireEndpoint(); err == nil {
		t.Fatal("expected RequireEndpoint to fail without an endpoint")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	info, err := os.Stat(cfg.Paths.LogDir)
	if err != nil {
		t.Fatalf("expected log dir to exist: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected %q to be directory", cfg.Paths.LogDir)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("ROLLCALL_ENDPOINT", "")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "rollcall.toml")

	type payload struct {
		Endpoint struct {
			URL string `toml:"url"`
		} `toml:"endpoint"`
		Camera struct {
			Facing  string            `toml:"facing"`
			Devices map[string]string `toml:"devices"`
		} `toml:"camera"`
		Session struct {
			DedupCooldownMillis int `toml:"dedup_cooldown_ms"`
		} `toml:"session"`
	}
	custom := payload{}
	custom.Endpoint.URL = "https://school.example.com/attendance/scan/"
	custom.Camera.Facing = "USER"
	custom.Camera.Devices = map[string]string{" User ": "/dev/video4"}
	custom.Session.DedupCooldownMillis = 5000
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Endpoint.URL != "https://school.example.com/attendance/scan/" {
		t.Fatalf("expected endpoint from file, got %q", cfg.Endpoint.URL)
	}
	if cfg.CameraDevice() != "/dev/video4" {
		t.Fatalf("expected facing map to select /dev/video4, got %q", cfg.CameraDevice())
	}
	if cfg.DeviceFor("environment") != "/dev/video0" {
		t.Fatalf("expected fallback device for unmapped facing, got %q", cfg.DeviceFor("environment"))
	}
	if cfg.DedupCooldown() != 5*time.Second {
		t.Fatalf("expected cooldown override, got %s", cfg.DedupCooldown())
	}
}

func TestEnvFallbacks(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ROLLCALL_ENDPOINT", "http://localhost:8000/scan/")
	t.Setenv("ROLLCALL_COOKIE_FILE", "~/cookies.txt")
	t.Setenv("ROLLCALL_API_TOKEN", " secret ")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Endpoint.URL != "http://localhost:8000/scan/" {
		t.Errorf("expected endpoint from env, got %q", cfg.Endpoint.URL)
	}
	if cfg.Endpoint.CookieFile != filepath.Join(home, "cookies.txt") {
		t.Errorf("expected expanded cookie file, got %q", cfg.Endpoint.CookieFile)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Errorf("expected api token from env, got %q", cfg.Paths.APIToken)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "endpoint scheme",
			mutate: func(c *config.Config) { c.Endpoint.URL = "ftp://example.com/scan" },
			want:   "endpoint.url must use http",
		},
		{
			name:   "endpoint host",
			mutate: func(c *config.Config) { c.Endpoint.URL = "https:///scan" },
			want:   "endpoint.url must include a host",
		},
		{
			name:   "facing",
			mutate: func(c *config.Config) { c.Camera.Facing = "sideways" },
			want:   "camera.facing",
		},
		{
			name: "device",
			mutate: func(c *config.Config) {
				c.Camera.Device = ""
				c.Camera.Devices = nil
			},
			want: "camera.device must be set",
		},
		{
			name:   "fps",
			mutate: func(c *config.Config) { c.Camera.FPS = 0 },
			want:   "camera.fps must be positive",
		},
		{
			name:   "cooldown",
			mutate: func(c *config.Config) { c.Session.DedupCooldownMillis = 0 },
			want:   "session.dedup_cooldown_ms",
		},
		{
			name:   "ntfy topic",
			mutate: func(c *config.Config) { c.Notifications.NtfyTopic = "my-topic" },
			want:   "notifications.ntfy_topic",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsExplicitBadValues(t *testing.T) {
	t.Setenv("ROLLCALL_ENDPOINT", "")
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "negative cooldown", body: "[session]\ndedup_cooldown_ms = -1\n", want: "session.dedup_cooldown_ms"},
		{name: "zero cooldown", body: "[session]\ndedup_cooldown_ms = 0\n", want: "session.dedup_cooldown_ms"},
		{name: "negative reset delay", body: "[session]\nreset_delay_ms = -5\n", want: "session.reset_delay_ms"},
		{name: "zero fps", body: "[camera]\nfps = 0\n", want: "camera.fps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadKeepsDefaultsForAbsentKeys(t *testing.T) {
	t.Setenv("ROLLCALL_ENDPOINT", "")
	path := filepath.Join(t.TempDir(), "partial.toml")
	if err := os.WriteFile(path, []byte("[session]\nauto_restart = true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DedupCooldown() != 3500*time.Millisecond {
		t.Fatalf("expected default cooldown, got %s", cfg.DedupCooldown())
	}
	if cfg.Camera.FPS != 10 || cfg.Camera.BoxWidth != 250 || cfg.Camera.BoxHeight != 250 {
		t.Fatalf("expected default scan geometry, got %+v", cfg.Camera)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("ROLLCALL_ENDPOINT", "")
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[endpoint]") {
		t.Fatalf("sample missing endpoint section: %s", contents)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if err := cfg.RequireEndpoint(); err != nil {
		t.Fatalf("expected sample endpoint to satisfy RequireEndpoint: %v", err)
	}
}
