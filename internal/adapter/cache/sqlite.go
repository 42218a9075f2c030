package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore keeps entries in a single SQLite file, for cache sets too large
// to be comfortable as one file per key.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("cache: sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: create dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports a single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS geo_cache (
			key       TEXT PRIMARY KEY,
			service   TEXT NOT NULL,
			payload   BLOB NOT NULL,
			cached_at INTEGER NOT NULL
		)`); err != nil {
		db.Close() //nolint:errcheck,gosec // schema error takes precedence
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key domain.CacheKey) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM geo_cache WHERE key = ?`, key.Digest()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: sqlite get %s: %w", key, err)
	}
	return payload, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key domain.CacheKey, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geo_cache (key, service, payload, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			payload = excluded.payload,
			cached_at = excluded.cached_at`,
		key.Digest(), string(key.Service), payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache: sqlite put %s: %w", key, err)
	}
	return nil
}

// Count returns the number of entries for service.
func (s *SQLiteStore) Count(ctx context.Context, service domain.Service) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geo_cache WHERE service = ?`, string(service)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("cache: sqlite count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
