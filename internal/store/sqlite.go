package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend implements Backend on a single SQLite table. Expired rows are
// hidden from reads and removed by DeleteExpired.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	backend := &SQLiteBackend{db: db, now: time.Now}
	if err := backend.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return backend, nil
}

func (s *SQLiteBackend) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS records (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		expires_at INTEGER,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, key)
	);
	CREATE INDEX IF NOT EXISTS idx_records_expires ON records(expires_at) WHERE expires_at IS NOT NULL;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Namespace implements Backend.
func (s *SQLiteBackend) Namespace(name string) KV {
	return &sqliteKV{backend: s, name: name}
}

// Ping verifies database connectivity.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteBackend) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// DeleteExpired removes rows whose expiry has passed.
// Retries with exponential backoff on SQLITE_BUSY.
func (s *SQLiteBackend) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		deleted, err := s.deleteExpiredOnce(ctx, now)
		if err == nil {
			return deleted, nil
		}
		lastErr = err

		if isSQLiteBusy(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
			slog.Debug("DeleteExpired failed with SQLITE_BUSY, retrying",
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}

	return 0, fmt.Errorf("delete expired records after %d attempts: %w", maxRetries, lastErr)
}

func (s *SQLiteBackend) deleteExpiredOnce(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired records: %w", err)
	}
	return result.RowsAffected()
}

type sqliteKV struct {
	backend *SQLiteBackend
	name    string
}

func (k *sqliteKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
	INSERT INTO records (namespace, key, value, expires_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(namespace, key) DO UPDATE SET
		value = excluded.value,
		expires_at = excluded.expires_at,
		updated_at = excluded.updated_at`

	now := k.backend.now()
	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixMilli()
	}

	_, err := k.backend.db.ExecContext(ctx, query, k.name, key, value, expiresAt, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

func (k *sqliteKV) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value FROM records
		WHERE namespace = ? AND key = ? AND (expires_at IS NULL OR expires_at > ?)`

	var value []byte
	err := k.backend.db.QueryRowContext(ctx, query, k.name, key, k.backend.now().UnixMilli()).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return value, nil
}

func (k *sqliteKV) List(ctx context.Context) ([]string, error) {
	query := `
		SELECT key FROM records
		WHERE namespace = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY rowid`

	rows, err := k.backend.db.QueryContext(ctx, query, k.name, k.backend.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close key rows", "error", closeErr)
		}
	}()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key row: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// isSQLiteBusy reports whether err is a SQLITE_BUSY or "database is locked"
// error. Both are transient and worth a retry.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
