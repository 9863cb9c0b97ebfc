// Package decoder wraps the camera QR decoding capability.
//
// A Decoder owns one camera stream between Start and Clear and reports every
// decoded payload through a callback. The production implementation drives the
// zbarcam binary from the zbar tools; tests substitute a Launcher so no camera
// or subprocess is required.
package decoder
