package preflight

import (
	"context"

	"rollcall/internal/config"
)

// Result reports the outcome of a single preflight check. Optional checks
// never make the overall run fail.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDecoder(cfg),
		CheckCameraDevice(cfg.CameraDevice()),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckEndpoint(ctx, cfg.Endpoint.URL),
		CheckToken(cfg),
	}
}

// Failed reports whether any required check did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
