package decoder

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable marks a decoding capability that cannot be loaded at all.
	ErrUnavailable = errors.New("decoder unavailable")
	// ErrExited marks a decoder that stopped on its own. It arrives through
	// ErrorFunc and means the handle is dead.
	ErrExited = errors.New("decoder exited")
)

// Camera selects the video source.
type Camera struct {
	// Facing is the preferred camera orientation, e.g. "environment".
	Facing string
	// Device is the resolved video device path.
	Device string
}

// ScanConfig tunes decoding.
type ScanConfig struct {
	FPS       int
	BoxWidth  int
	BoxHeight int
}

// DecodeFunc receives one decoded payload.
type DecodeFunc func(text string)

// ErrorFunc receives decode errors. Errors wrapping ErrExited are fatal to the
// handle; anything else, such as a frame without a code, is not.
type ErrorFunc func(err error)

// Decoder is a started-or-not camera decoding handle.
type Decoder interface {
	Start(ctx context.Context, camera Camera, scan ScanConfig, onDecode DecodeFunc, onError ErrorFunc) error
	Stop(ctx context.Context) error
	Clear(ctx context.Context) error
}

// Factory creates a decoder bound to a display target. It returns an error
// wrapping ErrUnavailable when the capability is missing.
type Factory func(target string) (Decoder, error)
