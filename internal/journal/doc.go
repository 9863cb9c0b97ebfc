// Package journal records every scan submission in SQLite.
//
// The journal is an operator-side audit trail: session id, payload, outcome
// kind, student and message for each accepted decode. Attendance itself lives
// with the remote endpoint; the journal only answers "what did this scanner
// send and what came back". Schema changes bump schemaVersion; operators
// delete journal.db to adopt a new schema.
package journal
