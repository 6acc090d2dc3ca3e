package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/byteforge/internal/cipher"
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "byteforge.db"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrJobNotRunning is returned when a terminal status is written for a
	// job that is not in the running state.
	ErrJobNotRunning = errors.New("store: job is not running")
)

// Store is the persistence boundary. Sensitive columns are encrypted on
// the way in and decrypted on the way out; callers only see plaintext.
type Store struct {
	db     *sql.DB
	dbPath string
	codec  codec
	now    func() time.Time
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool

	// Now overrides the clock used for timestamps. Nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir. c encrypts sensitive fields.
func Open(dbDir string, c *cipher.Cipher, opts Options) (*Store, error) {
	if c == nil {
		return nil, errors.New("store: cipher is required")
	}

	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		db:     db,
		dbPath: dbPath,
		codec:  codec{c: c},
		now:    now,
	}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (s *Store) createTables(ctx context.Context) error {
	schema := `
	-- name and scope are ciphertext
	CREATE TABLE IF NOT EXISTS targets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		scope TEXT NOT NULL,
		rate_limit_rps INTEGER NOT NULL DEFAULT 5,
		auth_profile TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- log is ciphertext
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		log TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_target ON jobs(target_id);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);

	-- title, description and remediation are ciphertext
	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id INTEGER NOT NULL,
		job_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		severity TEXT NOT NULL,
		cwe TEXT NOT NULL DEFAULT '',
		cvss TEXT NOT NULL DEFAULT '',
		cvss_score REAL NOT NULL DEFAULT 0,
		owasp TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		remediation TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_findings_target ON findings(target_id);
	CREATE INDEX IF NOT EXISTS idx_findings_job ON findings(job_id);

	-- data is ciphertext
	CREATE TABLE IF NOT EXISTS evidence (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		finding_id INTEGER NOT NULL REFERENCES findings(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		data TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_evidence_finding ON evidence(finding_id);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		target_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		frequency TEXT NOT NULL,
		cron TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// timestamp formats t for storage.
func (s *Store) timestamp() string {
	return formatTimestamp(s.now())
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats lists the formats parseTimestamp accepts, in order.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a stored timestamp. Unparseable values yield the
// zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
