// Package notifications delivers scan events via ntfy.
//
// The default implementation publishes to the topic configured in config.toml
// and degrades to a no-op when no topic is set. Marked scans and rejections
// are individually switchable, and repeats of the same payload inside the
// dedup window are dropped so a student waving a code does not flood the
// operator's phone.
package notifications
