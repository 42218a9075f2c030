// Package cache persists reverse-geocoding answers keyed by service and
// rounded coordinate.
package cache

import (
	"context"
	"fmt"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
)

// Store is a content-addressed byte store. Stores take no locks across keys:
// concurrent writers for one key always carry the same payload, so the last
// write wins without harm.
type Store interface {
	// Get returns the payload for key and whether it was present.
	Get(ctx context.Context, key domain.CacheKey) ([]byte, bool, error)

	// Put writes the payload for key, replacing any previous one.
	Put(ctx context.Context, key domain.CacheKey, payload []byte) error

	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend    Backend
	Dir        string
	SQLitePath string
	MemorySize int
}

// Open builds the Store described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFileStore(opts.Dir)
	case BackendSQLite:
		return NewSQLiteStore(opts.SQLitePath)
	case BackendMemory:
		return NewMemoryStore(opts.MemorySize), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", opts.Backend)
	}
}
