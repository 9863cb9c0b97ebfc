// Package logs reads the daemon's JSON log file for `rollcall logs`.
//
// Tail returns the last lines of the file and an offset to resume from;
// Follow polls from that offset until the context ends. Entries decode the
// daemon's JSON records and render them in the console layout.
package logs
