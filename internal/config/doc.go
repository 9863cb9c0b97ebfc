// Package config loads, normalizes, and validates rollcall configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ROLLCALL_ENDPOINT. The Config type centralizes every knob the daemon and CLI
// need: the attendance endpoint, camera and decoder settings, session timing,
// and the ambient logging/notification setup.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
