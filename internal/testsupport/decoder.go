package testsupport

import (
	"context"
	"sync"

	"rollcall/internal/decoder"
)

// FakeDecoder is an in-memory decoder whose decodes are driven by Emit.
type FakeDecoder struct {
	mu       sync.Mutex
	onDecode decoder.DecodeFunc
	camera   decoder.Camera
	StartErr error
	StopErr  error
	starts   int
	stops    int
	clears   int
}

// Start records the camera and keeps the decode callback.
func (f *FakeDecoder) Start(_ context.Context, camera decoder.Camera, _ decoder.ScanConfig, onDecode decoder.DecodeFunc, _ decoder.ErrorFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.StartErr != nil {
		return f.StartErr
	}
	f.camera = camera
	f.onDecode = onDecode
	return nil
}

// Stop records the call.
func (f *FakeDecoder) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.StopErr
}

// Clear drops the decode callback.
func (f *FakeDecoder) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	f.onDecode = nil
	return nil
}

// Emit delivers text to the decode callback if the decoder is started.
func (f *FakeDecoder) Emit(text string) bool {
	f.mu.Lock()
	cb := f.onDecode
	f.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(text)
	return true
}

// Camera returns the camera passed to the last successful Start.
func (f *FakeDecoder) Camera() decoder.Camera {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.camera
}

// Calls returns start, stop and clear counts.
func (f *FakeDecoder) Calls() (starts, stops, clears int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops, f.clears
}

// FakeFactory hands out dec for every target.
func FakeFactory(dec *FakeDecoder) decoder.Factory {
	return func(string) (decoder.Decoder, error) {
		return dec, nil
	}
}
