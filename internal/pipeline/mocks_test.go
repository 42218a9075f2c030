package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/geo-enrichment/internal/adapter/cache"
	"github.com/couchcryptid/geo-enrichment/internal/domain"
	"github.com/couchcryptid/geo-enrichment/internal/observability"
)

// --- mocks ---

type countingGeocoder struct {
	service domain.Service
	calls   atomic.Int64
	result  domain.NormalizedAddress
	err     error
	fn      func(ctx context.Context, coord domain.Coordinate) (domain.NormalizedAddress, error)
}

func (m *countingGeocoder) Service() domain.Service { return m.service }

func (m *countingGeocoder) ReverseGeocode(ctx context.Context, coord domain.Coordinate) (domain.NormalizedAddress, error) {
	m.calls.Add(1)
	if m.fn != nil {
		return m.fn(ctx, coord)
	}
	return m.result, m.err
}

// credentialGeocoder fails its credential check.
type credentialGeocoder struct {
	countingGeocoder
}

func (m *credentialGeocoder) CheckCredentials() error {
	return &domain.ConfigError{Service: m.service, Setting: "GOOGLE_API_KEY", Err: domain.ErrMissingCredential}
}

type countingStore struct {
	inner  cache.Store
	gets   atomic.Int64
	puts   atomic.Int64
	getErr error
	putErr error
}

func newCountingStore() *countingStore {
	return &countingStore{inner: cache.NewMemoryStore(1000)}
}

func (s *countingStore) Get(ctx context.Context, key domain.CacheKey) ([]byte, bool, error) {
	s.gets.Add(1)
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	return s.inner.Get(ctx, key)
}

func (s *countingStore) Put(ctx context.Context, key domain.CacheKey, payload []byte) error {
	s.puts.Add(1)
	if s.putErr != nil {
		return s.putErr
	}
	return s.inner.Put(ctx, key, payload)
}

type countingLimiter struct {
	mu    sync.Mutex
	waits map[domain.Service]int
	err   error
}

func (l *countingLimiter) Wait(_ context.Context, service domain.Service) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.waits == nil {
		l.waits = map[domain.Service]int{}
	}
	l.waits[service]++
	return l.err
}

func (l *countingLimiter) count(service domain.Service) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waits[service]
}

type mockExtractor struct {
	rows []domain.InputRow
	err  error
}

func (m *mockExtractor) Extract(context.Context) ([]domain.InputRow, error) {
	return m.rows, m.err
}

type mockLoader struct {
	mu     sync.Mutex
	calls  int
	failN  int // fail the first failN calls
	err    error
	loaded []domain.EnrichedRow
}

func (m *mockLoader) LoadBatch(_ context.Context, rows []domain.EnrichedRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failN {
		return m.err
	}
	m.loaded = append(m.loaded, rows...)
	return nil
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- helpers ---

func strPtr(s string) *string { return &s }

func makeRows(n int) []domain.InputRow {
	rows := make([]domain.InputRow, n)
	for i := range rows {
		rows[i] = domain.InputRow{
			RowID: int64(i + 1),
			Coord: domain.Coordinate{Lat: 38.6 + float64(i)*0.001, Lon: -90.2},
		}
	}
	return rows
}
