package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"rollcall/internal/config"
	"rollcall/internal/logging"
)

// cameraMonitor listens for udev netlink events on the video4linux subsystem
// and reports removal of the configured camera.
type cameraMonitor struct {
	logger    *slog.Logger
	onRemoved func(ctx context.Context, device string)
	device    string
	resolved  string

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newCameraMonitor(cfg *config.Config, logger *slog.Logger, onRemoved func(ctx context.Context, device string)) *cameraMonitor {
	if cfg == nil {
		return nil
	}
	device := strings.TrimSpace(cfg.CameraDevice())
	if device == "" {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	resolved := device
	if target, err := filepath.EvalSymlinks(device); err == nil {
		resolved = target
	}
	return &cameraMonitor{
		logger:    logging.NewComponentLogger(logger, "camera-monitor"),
		onRemoved: onRemoved,
		device:    device,
		resolved:  resolved,
	}
}

// Start begins listening for udev netlink events. Failure to connect is
// logged and tolerated; scanning works without hotplug detection.
func (m *cameraMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; camera unplug will go unnoticed", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "camera disconnects are not detected"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("camera monitor started",
		logging.String(logging.FieldEventType, "camera_monitor_started"),
		logging.String("device", m.device),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *cameraMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.logger.Info("camera monitor stopped", logging.String(logging.FieldEventType, "camera_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *cameraMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *cameraMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildCameraMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "camera disconnect detection may be affected"),
			)
		}
	}
}

// buildCameraMatcher matches SUBSYSTEM=video4linux add and remove events.
func buildCameraMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *cameraMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	if devname != m.device && devname != m.resolved {
		m.logger.Debug("ignoring event for other video device",
			logging.String("device", devname),
			logging.String("configured_device", m.device),
		)
		return
	}

	switch uevent.Action {
	case netlink.ADD:
		m.logger.Info("camera connected",
			logging.String(logging.FieldEventType, "camera_connected"),
			logging.String("device", devname),
		)
	case netlink.REMOVE:
		m.logger.Info("camera removed",
			logging.String(logging.FieldEventType, "camera_removed"),
			logging.String("device", devname),
		)
		if m.onRemoved != nil {
			m.onRemoved(ctx, m.device)
		}
	}
}

// extractDeviceName gets the device path from a uevent.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
