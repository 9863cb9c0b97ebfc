package preflight

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Camera is one capture device visible on the system.
type Camera struct {
	Device string
	Label  string
}

// ProbeCameras lists video capture devices, labelled through v4l2-ctl when
// it is installed.
func ProbeCameras() []Camera {
	if _, err := exec.LookPath("v4l2-ctl"); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		output, err := exec.CommandContext(ctx, "v4l2-ctl", "--list-devices").Output()
		if err == nil {
			if cams := parseV4L2Devices(string(output)); len(cams) > 0 {
				return cams
			}
		}
	}
	matches, _ := filepath.Glob("/dev/video*")
	sort.Strings(matches)
	cams := make([]Camera, 0, len(matches))
	for _, dev := range matches {
		cams = append(cams, Camera{Device: dev, Label: "Unknown"})
	}
	return cams
}

// parseV4L2Devices reads "v4l2-ctl --list-devices" output: an unindented
// label line followed by indented device paths.
func parseV4L2Devices(output string) []Camera {
	var cams []Camera
	label := ""
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if line[0] != ' ' && line[0] != '\t' {
			label = strings.TrimSuffix(trimmed, ":")
			continue
		}
		if strings.HasPrefix(trimmed, "/dev/video") {
			cams = append(cams, Camera{Device: trimmed, Label: label})
		}
	}
	return cams
}

// CameraDetail renders a display-friendly summary for status UIs.
func CameraDetail(cams []Camera, configured string) string {
	if len(cams) == 0 {
		return "No cameras detected"
	}
	for _, cam := range cams {
		if cam.Device == configured {
			return cam.Label + " on " + cam.Device
		}
	}
	return fmt.Sprintf("%s not detected (%d other camera(s) present)", configured, len(cams))
}
