package daemon

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"rollcall/internal/config"
)

func monitorConfig(device string) *config.Config {
	cfg := &config.Config{}
	cfg.Camera.Device = device
	return cfg
}

func TestNewCameraMonitor(t *testing.T) {
	t.Run("nil config returns nil", func(t *testing.T) {
		if m := newCameraMonitor(nil, nil, nil); m != nil {
			t.Error("expected nil monitor for nil config")
		}
	})

	t.Run("empty device returns nil", func(t *testing.T) {
		if m := newCameraMonitor(monitorConfig(""), nil, nil); m != nil {
			t.Error("expected nil monitor for empty camera device")
		}
	})

	t.Run("facing mapping wins over device", func(t *testing.T) {
		cfg := monitorConfig("/dev/video0")
		cfg.Camera.Facing = "user"
		cfg.Camera.Devices = map[string]string{"user": "/dev/video2"}
		m := newCameraMonitor(cfg, nil, nil)
		if m == nil {
			t.Fatal("expected non-nil monitor")
		}
		if m.device != "/dev/video2" {
			t.Errorf("expected device /dev/video2, got %s", m.device)
		}
	})
}

func TestCameraMonitorNilSafety(t *testing.T) {
	var m *cameraMonitor
	if m.Running() {
		t.Error("expected Running() to return false for nil monitor")
	}
	m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor should return nil, got: %v", err)
	}

	m = newCameraMonitor(monitorConfig("/dev/video0"), nil, nil)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("expected unstarted monitor to report not running")
	}
}

func TestBuildCameraMatcher(t *testing.T) {
	matcher := buildCameraMatcher()
	cases := []struct {
		name   string
		action netlink.KObjAction
		env    map[string]string
		want   bool
	}{
		{"add", netlink.ADD, map[string]string{"SUBSYSTEM": "video4linux"}, true},
		{"remove", netlink.REMOVE, map[string]string{"SUBSYSTEM": "video4linux"}, true},
		{"change", netlink.CHANGE, map[string]string{"SUBSYSTEM": "video4linux"}, false},
		{"other subsystem", netlink.REMOVE, map[string]string{"SUBSYSTEM": "block"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := matcher.Evaluate(netlink.UEvent{Action: tc.action, Env: tc.env})
			if got != tc.want {
				t.Errorf("Evaluate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCameraMonitorHandleEvent(t *testing.T) {
	var removed []string
	m := newCameraMonitor(monitorConfig("/dev/video0"), nil, func(_ context.Context, device string) {
		removed = append(removed, device)
	})
	ctx := context.Background()

	m.handleEvent(ctx, netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{}})
	m.handleEvent(ctx, netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "video1"}})
	m.handleEvent(ctx, netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "video0"}})
	if len(removed) != 0 {
		t.Fatalf("expected no removal callbacks, got %v", removed)
	}

	m.handleEvent(ctx, netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "video0"}})
	m.handleEvent(ctx, netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{
		"DEVPATH": "/devices/pci0000:00/0000:00:14.0/usb1/1-2/1-2:1.0/video4linux/video0",
	}})
	if len(removed) != 2 || removed[0] != "/dev/video0" || removed[1] != "/dev/video0" {
		t.Fatalf("unexpected removal callbacks: %v", removed)
	}
}

func TestExtractDeviceName(t *testing.T) {
	cases := map[string]struct {
		env  map[string]string
		want string
	}{
		"absolute devname": {map[string]string{"DEVNAME": "/dev/video3"}, "/dev/video3"},
		"relative devname": {map[string]string{"DEVNAME": "video3"}, "/dev/video3"},
		"devpath":          {map[string]string{"DEVPATH": "/devices/virtual/video4linux/video7"}, "/dev/video7"},
		"empty":            {map[string]string{}, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := extractDeviceName(netlink.UEvent{Env: tc.env}); got != tc.want {
				t.Errorf("extractDeviceName = %q, want %q", got, tc.want)
			}
		})
	}
}
