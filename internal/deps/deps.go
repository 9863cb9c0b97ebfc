// Package deps checks the external binaries rollcall drives.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"rollcall/internal/config"
)

// Requirement defines an external dependency rollcall relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configuration needs.
func Requirements(cfg *config.Config) []Requirement {
	decoder := "zbarcam"
	if cfg != nil && strings.TrimSpace(cfg.Camera.DecoderBinary) != "" {
		decoder = strings.TrimSpace(cfg.Camera.DecoderBinary)
	}
	return []Requirement{
		{Name: "QR decoder", Command: decoder, Description: "Decodes QR codes from the camera stream (zbar-tools)"},
		{Name: "v4l2-ctl", Command: "v4l2-ctl", Description: "Lists camera devices for troubleshooting", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
