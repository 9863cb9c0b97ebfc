package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rollcall/internal/config"
	"rollcall/internal/logging"
	"rollcall/internal/session"
	"rollcall/internal/submit"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by another schema.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// DefaultListLimit bounds history queries without an explicit limit.
	DefaultListLimit = 20
)

const entryColumns = "id, session_id, correlation_id, payload, outcome, student, message, server_status, http_status, error_message, observed_at, completed_at"

// Entry is one journaled submission.
type Entry struct {
	ID            int64       `json:"id"`
	SessionID     string      `json:"session_id"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Payload       string      `json:"payload"`
	Outcome       submit.Kind `json:"outcome"`
	Student       string      `json:"student,omitempty"`
	Message       string      `json:"message,omitempty"`
	ServerStatus  string      `json:"server_status,omitempty"`
	HTTPStatus    int         `json:"http_status,omitempty"`
	Error         string      `json:"error,omitempty"`
	ObservedAt    time.Time   `json:"observed_at"`
	CompletedAt   time.Time   `json:"completed_at"`
}

// Store persists entries.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens the journal at the configured location, creating it if needed.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JournalPath(), logger)
}

// OpenPath opens a journal database file.
func OpenPath(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if logger == nil {
		logger = logging.NewNop()
	}
	store := &Store{db: db, path: path, logger: logging.NewComponentLogger(logger, "journal")}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: journal has version %d, expected %d (delete %s to start a new journal)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Append stores an entry and returns its id.
func (s *Store) Append(ctx context.Context, entry Entry) (int64, error) {
	if strings.TrimSpace(entry.SessionID) == "" {
		return 0, errors.New("journal entry requires a session id")
	}
	if entry.Outcome == "" {
		return 0, errors.New("journal entry requires an outcome")
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now()
	}
	if entry.ObservedAt.IsZero() {
		entry.ObservedAt = entry.CompletedAt
	}

	var id int64
	err := retryOnBusy(ensureContext(ctx), func() error {
		res, err := s.db.ExecContext(ensureContext(ctx),
			`INSERT INTO scans (session_id, correlation_id, payload, outcome, student, message, server_status, http_status, error_message, observed_at, completed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.SessionID,
			nullableString(entry.CorrelationID),
			entry.Payload,
			string(entry.Outcome),
			nullableString(entry.Student),
			nullableString(entry.Message),
			nullableString(entry.ServerStatus),
			nullableInt(entry.HTTPStatus),
			nullableString(entry.Error),
			formatTime(entry.ObservedAt),
			formatTime(entry.CompletedAt),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("append journal entry: %w", err)
	}
	return id, nil
}

// List returns the newest entries first. A non-positive limit uses
// DefaultListLimit.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+entryColumns+` FROM scans ORDER BY completed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats counts entries by outcome kind.
func (s *Store) Stats(ctx context.Context) (map[submit.Kind]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT outcome, COUNT(1) FROM scans GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[submit.Kind]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats[submit.Kind(kind)] = count
	}
	return stats, rows.Err()
}

// Prune deletes entries completed before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE completed_at < ?`, formatTime(cutoff))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return removed, nil
}

// ScanCompleted journals a session scan. Failures are logged, never returned.
func (s *Store) ScanCompleted(ctx context.Context, scan session.Scan) {
	entry := Entry{
		SessionID:     scan.SessionID,
		CorrelationID: scan.CorrelationID,
		Payload:       scan.Payload,
		Outcome:       scan.Outcome.Kind,
		Student:       scan.Outcome.Student,
		Message:       scan.Outcome.Display().Message,
		ServerStatus:  scan.Outcome.Status,
		HTTPStatus:    scan.Outcome.HTTPStatus,
		ObservedAt:    scan.ObservedAt,
		CompletedAt:   scan.CompletedAt,
	}
	if scan.Outcome.Err != nil {
		entry.Error = scan.Outcome.Err.Error()
	}
	if _, err := s.Append(ctx, entry); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "scan not journaled", "journal_append_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check disk space and permissions on "+s.path),
			logging.String(logging.FieldImpact, "history will miss this scan"),
		)
	}
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry         Entry
		correlationID sql.NullString
		outcome       string
		student       sql.NullString
		message       sql.NullString
		serverStatus  sql.NullString
		httpStatus    sql.NullInt64
		errorMessage  sql.NullString
		observedRaw   string
		completedRaw  string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.SessionID,
		&correlationID,
		&entry.Payload,
		&outcome,
		&student,
		&message,
		&serverStatus,
		&httpStatus,
		&errorMessage,
		&observedRaw,
		&completedRaw,
	); err != nil {
		return Entry{}, err
	}
	entry.CorrelationID = correlationID.String
	entry.Outcome = submit.Kind(outcome)
	entry.Student = student.String
	entry.Message = message.String
	entry.ServerStatus = serverStatus.String
	entry.HTTPStatus = int(httpStatus.Int64)
	entry.Error = errorMessage.String
	if t, err := time.Parse(time.RFC3339Nano, observedRaw); err == nil {
		entry.ObservedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, completedRaw); err == nil {
		entry.CompletedAt = t
	}
	return entry, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) {
			return lastErr
		}
		if attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

// formatTime stores UTC with fixed-width nanoseconds so lexical order matches
// chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
