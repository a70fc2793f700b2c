// Package store is the small key-value store shared by crawler instances on
// one machine. It carries the cooperative mode flag and the last discovered
// expiration list.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// KeyMode holds the cross-instance flag.
	KeyMode = "mode"
	// KeyExpirations holds the raw expiration list for warm starts.
	KeyExpirations = "productDateList"
)

// Mode is the cross-instance flag.
type Mode string

const (
	ModeOpen  Mode = "open"
	ModeClose Mode = "close"
)

// ParseMode accepts "open" or "close".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeOpen:
		return ModeOpen, nil
	case ModeClose:
		return ModeClose, nil
	}
	return "", fmt.Errorf("invalid mode %q", s)
}

// ErrNotFound is returned for a missing key.
var ErrNotFound = errors.New("key not found")

// Store is a sqlite-backed key-value table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// Two processes share the file; keep one connection per process.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		slog.Warn("store WAL mode not enabled", "error", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		slog.Warn("store busy timeout not set", "error", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns the value at key or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// Set upserts key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Mode returns the flag, defaulting to open when unset.
func (s *Store) Mode(ctx context.Context) (Mode, error) {
	v, err := s.Get(ctx, KeyMode)
	if errors.Is(err, ErrNotFound) {
		return ModeOpen, nil
	}
	if err != nil {
		return "", err
	}
	return ParseMode(v)
}

func (s *Store) SetMode(ctx context.Context, m Mode) error {
	return s.Set(ctx, KeyMode, string(m))
}

// Expirations returns the saved raw expiration list; ok is false when none
// was saved.
func (s *Store) Expirations(ctx context.Context) (string, bool, error) {
	v, err := s.Get(ctx, KeyExpirations)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, v != "", nil
}

func (s *Store) SaveExpirations(ctx context.Context, raw string) error {
	return s.Set(ctx, KeyExpirations, raw)
}
