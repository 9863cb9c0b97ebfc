package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"rollcall/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Endpoint.URL = "http://127.0.0.1:1/attendance/scan/"
	cfgVal.Endpoint.CookieFile = filepath.Join(base, "cookies.txt")
	cfgVal.Camera.Device = filepath.Join(base, "video0")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithEndpoint points submissions at url, typically an httptest server.
func WithEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Endpoint.URL = url
	}
}

// WithCookies writes the ambient cookie file.
func WithCookies(cookies string) ConfigOption {
	return func(b *configBuilder) {
		if err := os.WriteFile(b.cfg.Endpoint.CookieFile, []byte(cookies+"\n"), 0o600); err != nil {
			b.t.Fatalf("write cookie file: %v", err)
		}
	}
}

// WithCameraDevice creates a placeholder device file and selects it.
func WithCameraDevice(name string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, name)
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			b.t.Fatalf("create device placeholder: %v", err)
		}
		b.cfg.Camera.Device = path
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the decoder binary is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"zbarcam"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
