package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var validFacings = map[string]struct{}{
	"environment": {},
	"user":        {},
	"left":        {},
	"right":       {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEndpoint(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

// validateEndpoint accepts an empty URL so CLI commands that never submit
// (history, config init) keep working; the daemon checks presence at start.
func (c *Config) validateEndpoint() error {
	if c.Endpoint.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Endpoint.URL)
	if err != nil {
		return fmt.Errorf("endpoint.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint.url must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("endpoint.url must include a host")
	}
	return nil
}

func (c *Config) validateCamera() error {
	if _, ok := validFacings[c.Camera.Facing]; !ok {
		return fmt.Errorf("camera.facing must be one of environment, user, left, right; got %q", c.Camera.Facing)
	}
	if c.CameraDevice() == "" {
		return errors.New("camera.device must be set (or camera.devices must map camera.facing)")
	}
	if err := ensurePositiveMap(map[string]int{
		"camera.fps":        c.Camera.FPS,
		"camera.box_width":  c.Camera.BoxWidth,
		"camera.box_height": c.Camera.BoxHeight,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.DedupCooldownMillis <= 0 {
		return errors.New("session.dedup_cooldown_ms must be positive")
	}
	if c.Session.ResetDelayMillis < 0 {
		return errors.New("session.reset_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" && !strings.HasPrefix(topic, "http") {
		return errors.New("notifications.ntfy_topic must be a full http(s) URL")
	}
	return nil
}

// RequireEndpoint reports a helpful error when no endpoint is configured.
func (c *Config) RequireEndpoint() error {
	if strings.TrimSpace(c.Endpoint.URL) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("endpoint.url is required. Set ROLLCALL_ENDPOINT or edit %s (create with 'rollcall config init')", defaultPath)
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
