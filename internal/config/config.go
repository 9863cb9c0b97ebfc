package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Endpoint describes the remote attendance endpoint scans are submitted to.
type Endpoint struct {
	URL            string `toml:"url"`
	TokenCookie    string `toml:"token_cookie"`
	TokenHeader    string `toml:"token_header"`
	CookieFile     string `toml:"cookie_file"`
	SendCookies    bool   `toml:"send_cookies"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Camera contains capture device and decoder settings.
type Camera struct {
	// Facing is the preferred camera orientation ("environment" for the rear camera).
	Facing string `toml:"facing"`
	// Device is the fallback capture device when Devices has no entry for Facing.
	Device string `toml:"device"`
	// Devices maps a facing preference to a capture device path.
	Devices       map[string]string `toml:"devices"`
	FPS           int               `toml:"fps"`
	BoxWidth      int               `toml:"box_width"`
	BoxHeight     int               `toml:"box_height"`
	DecoderBinary string            `toml:"decoder_binary"`
	// StartSettleMillis is how long a freshly started decoder must stay alive
	// before the camera is considered live.
	StartSettleMillis int `toml:"start_settle_ms"`
}

// Session contains scan session timing.
type Session struct {
	DedupCooldownMillis int  `toml:"dedup_cooldown_ms"`
	ResetDelayMillis    int  `toml:"reset_delay_ms"`
	AutoRestart         bool `toml:"auto_restart"`
}

// Journal controls the local submission journal.
type Journal struct {
	Enabled bool `toml:"enabled"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	Marked             bool   `toml:"marked"`
	Rejected           bool   `toml:"rejected"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for rollcall.
//
// Configuration sections by subsystem:
//   - Paths: log/state directory and API bind address
//   - Endpoint: attendance endpoint and anti-forgery token lookup
//   - Camera: capture device, scan cadence, decoder binary
//   - Session: duplicate cooldown and post-scan reset timing
//   - Journal: local record of submission outcomes
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Endpoint      Endpoint      `toml:"endpoint"`
	Camera        Camera        `toml:"camera"`
	Session       Session       `toml:"session"`
	Journal       Journal       `toml:"journal"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("rollcall.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// SocketPath returns the IPC socket location inside the log directory.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "rollcall.sock")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "rollcalld.lock")
}

// PIDPath returns the daemon pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "rollcalld.pid")
}

// JournalPath returns the submission journal database file.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.LogDir, "journal.db")
}

// LogPath returns the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "rollcalld.log")
}

// CameraDevice resolves the capture device for the configured facing preference.
func (c *Config) CameraDevice() string {
	return c.DeviceFor(c.Camera.Facing)
}

// DeviceFor resolves the capture device for a facing preference, falling back
// to camera.device when no mapping exists.
func (c *Config) DeviceFor(facing string) string {
	facing = strings.ToLower(strings.TrimSpace(facing))
	if dev, ok := c.Camera.Devices[facing]; ok && strings.TrimSpace(dev) != "" {
		return strings.TrimSpace(dev)
	}
	return strings.TrimSpace(c.Camera.Device)
}

// DedupCooldown returns the identical-payload cooldown.
func (c *Config) DedupCooldown() time.Duration {
	return time.Duration(c.Session.DedupCooldownMillis) * time.Millisecond
}

// ResetDelay returns the delay between a successful mark and the session reset.
func (c *Config) ResetDelay() time.Duration {
	return time.Duration(c.Session.ResetDelayMillis) * time.Millisecond
}

// StartSettle returns the decoder start settle window.
func (c *Config) StartSettle() time.Duration {
	return time.Duration(c.Camera.StartSettleMillis) * time.Millisecond
}

// EndpointTimeout returns the transport timeout; zero means no timeout.
func (c *Config) EndpointTimeout() time.Duration {
	return time.Duration(c.Endpoint.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
