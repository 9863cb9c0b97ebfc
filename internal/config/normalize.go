package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEndpoint(); err != nil {
		return err
	}
	c.normalizeCamera()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("ROLLCALL_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeEndpoint() error {
	c.Endpoint.URL = strings.TrimSpace(c.Endpoint.URL)
	if c.Endpoint.URL == "" {
		if value, ok := os.LookupEnv("ROLLCALL_ENDPOINT"); ok {
			c.Endpoint.URL = strings.TrimSpace(value)
		}
	}
	c.Endpoint.TokenCookie = strings.TrimSpace(c.Endpoint.TokenCookie)
	if c.Endpoint.TokenCookie == "" {
		c.Endpoint.TokenCookie = defaultTokenCookie
	}
	c.Endpoint.TokenHeader = strings.TrimSpace(c.Endpoint.TokenHeader)
	if c.Endpoint.TokenHeader == "" {
		c.Endpoint.TokenHeader = defaultTokenHeader
	}
	c.Endpoint.CookieFile = strings.TrimSpace(c.Endpoint.CookieFile)
	if c.Endpoint.CookieFile == "" {
		if value, ok := os.LookupEnv("ROLLCALL_COOKIE_FILE"); ok {
			c.Endpoint.CookieFile = strings.TrimSpace(value)
		}
	}
	if c.Endpoint.CookieFile != "" {
		var err error
		if c.Endpoint.CookieFile, err = expandPath(c.Endpoint.CookieFile); err != nil {
			return fmt.Errorf("endpoint.cookie_file: %w", err)
		}
	}
	if c.Endpoint.TimeoutSeconds < 0 {
		c.Endpoint.TimeoutSeconds = 0
	}
	return nil
}

func (c *Config) normalizeCamera() {
	c.Camera.Facing = strings.ToLower(strings.TrimSpace(c.Camera.Facing))
	if c.Camera.Facing == "" {
		c.Camera.Facing = defaultFacing
	}
	c.Camera.Device = strings.TrimSpace(c.Camera.Device)
	if len(c.Camera.Devices) > 0 {
		devices := make(map[string]string, len(c.Camera.Devices))
		for facing, dev := range c.Camera.Devices {
			facing = strings.ToLower(strings.TrimSpace(facing))
			dev = strings.TrimSpace(dev)
			if facing == "" || dev == "" {
				continue
			}
			devices[facing] = dev
		}
		c.Camera.Devices = devices
	}
	c.Camera.DecoderBinary = strings.TrimSpace(c.Camera.DecoderBinary)
	if c.Camera.DecoderBinary == "" {
		c.Camera.DecoderBinary = defaultDecoderBinary
	}
	if c.Camera.StartSettleMillis < 0 {
		c.Camera.StartSettleMillis = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
