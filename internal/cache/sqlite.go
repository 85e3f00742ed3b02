package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS findings_cache (
	analyzer     TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	entry        BLOB NOT NULL,
	created_at   INTEGER NOT NULL,
	PRIMARY KEY (analyzer, content_hash)
);
`

// SQLite is a file-backed cache that survives between runs.
type SQLite struct {
	db *sql.DB
}

// DefaultSQLitePath returns the default on-disk cache location.
func DefaultSQLitePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get cache directory: %w", err)
	}
	return filepath.Join(dir, "revgate", "findings.db"), nil
}

// OpenSQLite opens or creates the cache database at path with WAL mode
// enabled. An empty path uses DefaultSQLitePath.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		var err error
		if path, err = DefaultSQLitePath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Single writer, as with any SQLite file.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply cache schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key Key) (Entry, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT entry FROM findings_cache WHERE analyzer = ? AND content_hash = ?`,
		key.Analyzer, key.ContentHash,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	return decodeEntry(key, raw)
}

func (s *SQLite) Put(ctx context.Context, key Key, entry Entry) error {
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO findings_cache (analyzer, content_hash, entry, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (analyzer, content_hash) DO UPDATE SET entry = excluded.entry, created_at = excluded.created_at`,
		key.Analyzer, key.ContentHash, raw, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

// Prune deletes entries older than maxAge and returns how many went.
func (s *SQLite) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM findings_cache WHERE created_at < ?`,
		time.Now().Add(-maxAge).Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
