package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rollcall/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCameraDevice(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCameraDevice("video0"))
	if result := CheckCameraDevice(cfg.CameraDevice()); !result.Passed {
		t.Fatalf("expected pass for accessible device, got: %s", result.Detail)
	}
	if result := CheckCameraDevice(filepath.Join(t.TempDir(), "video9")); result.Passed {
		t.Fatal("expected failure for missing device")
	}
	if result := CheckCameraDevice(""); result.Passed || !strings.Contains(result.Detail, "not configured") {
		t.Fatalf("expected not configured failure, got %#v", result)
	}
	if result := CheckCameraDevice(t.TempDir()); result.Passed {
		t.Fatal("expected failure for directory")
	}
}

func TestCheckDecoder(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if result := CheckDecoder(cfg); !result.Passed {
		t.Fatalf("expected stubbed zbarcam to resolve, got: %s", result.Detail)
	}
	cfg.Camera.DecoderBinary = "rollcall-missing-decoder"
	if result := CheckDecoder(cfg); result.Passed {
		t.Fatal("expected failure for missing decoder")
	}
}

func TestCheckEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	if result := CheckEndpoint(context.Background(), srv.URL+"/attendance/scan/"); !result.Passed {
		t.Fatalf("expected reachable endpoint, got: %s", result.Detail)
	}

	cases := map[string]string{
		"empty":       "",
		"bad scheme":  "ftp://example.com/scan",
		"no host":     "http:///scan",
		"unreachable": "http://127.0.0.1:1/scan",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if result := CheckEndpoint(context.Background(), raw); result.Passed {
				t.Fatalf("expected failure for %q", raw)
			}
		})
	}
}

func TestCheckTokenIsOptional(t *testing.T) {
	t.Setenv("ROLLCALL_COOKIES", "")
	cfg := testsupport.NewConfig(t)
	missing := CheckToken(cfg)
	if missing.Passed || !missing.Optional {
		t.Fatalf("expected optional failure without cookies, got %#v", missing)
	}

	cfg = testsupport.NewConfig(t, testsupport.WithCookies("csrftoken=abc"))
	if present := CheckToken(cfg); !present.Passed {
		t.Fatalf("expected token present, got %#v", present)
	}
}

func TestRunAllAndFailed(t *testing.T) {
	t.Setenv("ROLLCALL_COOKIES", "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries(),
		testsupport.WithCameraDevice("video0"),
		testsupport.WithEndpoint(srv.URL),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if Failed(results) {
		t.Fatalf("expected only the optional token check to fail: %#v", results)
	}

	cfg.Camera.DecoderBinary = "rollcall-missing-decoder"
	if !Failed(RunAll(context.Background(), cfg)) {
		t.Fatal("expected failure with missing decoder")
	}
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestParseV4L2Devices(t *testing.T) {
	output := "Integrated Camera: Integrated C (usb-0000:00:14.0-8):\n\t/dev/video0\n\t/dev/video1\n\t/dev/media0\n\nUSB Webcam (usb-0000:00:14.0-2):\n\t/dev/video2\n"
	cams := parseV4L2Devices(output)
	if len(cams) != 3 {
		t.Fatalf("expected 3 cameras, got %#v", cams)
	}
	if cams[2].Device != "/dev/video2" || cams[2].Label != "USB Webcam (usb-0000:00:14.0-2)" {
		t.Fatalf("unexpected camera %#v", cams[2])
	}
	if got := CameraDetail(cams, "/dev/video2"); got != "USB Webcam (usb-0000:00:14.0-2) on /dev/video2" {
		t.Fatalf("unexpected detail %q", got)
	}
	if got := CameraDetail(nil, "/dev/video0"); got != "No cameras detected" {
		t.Fatalf("unexpected detail %q", got)
	}
}
