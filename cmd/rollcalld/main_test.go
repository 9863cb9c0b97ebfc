package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunRejectsUnknownFlag(t *testing.T) {
	if err := run([]string{"--bogus"}); err == nil {
		t.Fatal("expected unknown flag to fail")
	}
}

func TestRunRequiresEndpoint(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ROLLCALL_ENDPOINT", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[paths]\nlog_dir = \"" + filepath.Join(dir, "logs") + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	err := run([]string{"--config", path})
	if err == nil {
		t.Fatal("expected missing endpoint to fail")
	}
	if !strings.Contains(err.Error(), "endpoint.url is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[camera]\nfacing = \"sideways\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	err := run([]string{"-c", path})
	if err == nil || !strings.Contains(err.Error(), "camera.facing") {
		t.Fatalf("expected facing validation error, got %v", err)
	}
}
