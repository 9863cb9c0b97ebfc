package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"rollcall/internal/config"
	"rollcall/internal/deps"
	"rollcall/internal/token"
)

// CheckDecoder verifies that the decoder binary resolves on PATH.
func CheckDecoder(cfg *config.Config) Result {
	const name = "QR decoder"
	binary := "zbarcam"
	if strings.TrimSpace(cfg.Camera.DecoderBinary) != "" {
		binary = strings.TrimSpace(cfg.Camera.DecoderBinary)
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not found (install zbar-tools)", binary)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckCameraDevice verifies that the capture device exists and is readable
// and writable by the current user.
func CheckCameraDevice(path string) Result {
	const name = "Camera device"
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured (set camera.device)"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v; join the video group)", path, err)}
	}
	kind := "character device"
	if info.Mode()&os.ModeCharDevice == 0 {
		kind = "not a character device"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s, read/write ok)", path, kind)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckEndpoint verifies the attendance endpoint URL and that its host
// answers HTTP. Any HTTP response counts as reachable; the endpoint only
// accepts authenticated POSTs.
func CheckEndpoint(ctx context.Context, rawURL string) Result {
	const name = "Attendance endpoint"
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Result{Name: name, Detail: "not configured (set endpoint.url)"}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not an http(s) URL)", rawURL)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", rawURL, err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", rawURL, summarizeNetError(err))}
	}
	resp.Body.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable, HTTP %d)", rawURL, resp.StatusCode)}
}

// CheckToken reports whether the anti-forgery token is currently available.
// A missing token is advisory: the endpoint may not require one.
func CheckToken(cfg *config.Config) Result {
	const name = "Anti-forgery token"
	cookie := strings.TrimSpace(cfg.Endpoint.TokenCookie)
	if cookie == "" {
		cookie = token.DefaultCookieName
	}
	provider := token.NewCookieProvider(cookie, token.FirstOf(
		token.FileSource(cfg.Endpoint.CookieFile),
		token.EnvSource(token.CookieEnv),
	))
	if provider.CurrentToken() == "" {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s cookie not found (endpoint.cookie_file or %s)", cookie, token.CookieEnv)}
	}
	return Result{Name: name, Optional: true, Passed: true, Detail: fmt.Sprintf("%s cookie present", cookie)}
}

// CheckSystemDeps evaluates the external binaries for the given config. Both
// the daemon and the CLI status command use this.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}
