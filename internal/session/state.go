package session

import (
	"errors"
	"time"

	"rollcall/internal/status"
	"rollcall/internal/submit"
)

// State is the session lifecycle position.
type State int

const (
	Idle State = iota
	Starting
	Live
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Live:
		return "live"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

var (
	// ErrCapabilityUnavailable marks a missing decoder.
	ErrCapabilityUnavailable = errors.New("decoding capability unavailable")
	// ErrCameraStartFailure marks a decoder that could not start.
	ErrCameraStartFailure = errors.New("camera start failed")
	// ErrCameraStopFailure marks a decoder that did not stop or clear cleanly.
	ErrCameraStopFailure = errors.New("camera stop failed")
)

// Operator-facing status lines.
var (
	StatusLive               = status.Display{Message: "Camera is live. Scan student QR.", Category: status.Success}
	StatusLibraryMissing     = status.Display{Message: "Scanner library could not load. Check the decoder installation.", Category: status.Error}
	StatusStartFailed        = status.Display{Message: "Camera start failed. Grant permission and retry.", Category: status.Error}
	StatusStopped            = status.Display{Message: "Scanner stopped.", Category: status.Neutral}
	StatusStopFailed         = status.Display{Message: "Could not stop scanner cleanly.", Category: status.Warning}
	StatusReady              = status.Display{Message: "Ready for next scan.", Category: status.Neutral}
	StatusCameraDisconnected = status.Display{Message: "Camera disconnected.", Category: status.Warning}
)

// Info is a point-in-time view of the session.
type Info struct {
	State     State
	SessionID string
	Device    string
	StartedAt time.Time
	Accepted  int
}

// Scan describes one completed submission.
type Scan struct {
	SessionID     string
	CorrelationID string
	Payload       string
	Outcome       submit.Outcome
	ObservedAt    time.Time
	CompletedAt   time.Time
}
