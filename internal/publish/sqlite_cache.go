package publish

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// ErrNotCached is returned by Get for an unknown label
var ErrNotCached = errors.New("artifact not cached")

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	label      TEXT PRIMARY KEY,
	compressed INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	stored_at  TEXT NOT NULL
)`

// SQLiteCache keeps the latest artifact per label in a SQLite database
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (or creates) the cache database at dbPath
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	// one writer at a time; runs for different tickers publish concurrently
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Put stores data under label, replacing any previous artifact
func (c *SQLiteCache) Put(ctx context.Context, label string, compressed bool, data []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifacts (label, compressed, payload, stored_at) VALUES (?, ?, ?, ?)`,
		label, compressed, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("caching %s: %w", label, err)
	}
	return nil
}

// Get returns the artifact stored under label, decompressed
func (c *SQLiteCache) Get(ctx context.Context, label string) ([]byte, error) {
	var (
		compressed bool
		data       []byte
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT compressed, payload FROM artifacts WHERE label = ?`, label).Scan(&compressed, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotCached, label)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", label, err)
	}
	if compressed {
		return Decompress(data)
	}
	return data, nil
}

// Close closes the underlying database connection
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
