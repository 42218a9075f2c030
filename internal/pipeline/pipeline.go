package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
	"github.com/couchcryptid/geo-enrichment/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	maxLoadAttempts = 3
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 5 * time.Second
)

// Extractor reads the full set of input rows.
type Extractor interface {
	Extract(ctx context.Context) ([]domain.InputRow, error)
}

// BatchLoader writes enriched rows to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, rows []domain.EnrichedRow) error
}

// Pipeline runs one extract-enrich-load pass.
type Pipeline struct {
	extractor   Extractor
	coordinator *Coordinator
	sink        BatchLoader
	publishers  []BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	runID       string
	ready       atomic.Bool
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPublisher adds a secondary destination written after the sink.
func WithPublisher(l BatchLoader) Option {
	return func(p *Pipeline) { p.publishers = append(p.publishers, l) }
}

// WithClock sets the clock used to time the run.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// New creates a Pipeline. sink receives the rows first; publishers follow.
func New(e Extractor, c *Coordinator, sink BatchLoader, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   e,
		coordinator: c,
		sink:        sink,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		runID:       uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logger.With("run_id", p.runID)
	return p
}

// RunID identifies this run in logs, summaries and published messages.
func (p *Pipeline) RunID() string { return p.runID }

// CheckReadiness returns nil once the input has been loaded and enrichment
// has started.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded its input yet")
	}
	return nil
}

// Run extracts, enriches and loads every row. On error nothing is written to
// the sink.
func (p *Pipeline) Run(ctx context.Context) (domain.Summary, error) {
	start := p.clock.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	rows, err := p.extractor.Extract(ctx)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("extract: %w", err)
	}
	p.metrics.RowsRead.Add(float64(len(rows)))
	p.ready.Store(true)
	p.logger.Info("pipeline started", "rows", len(rows), "workers", p.coordinator.Workers())

	out, err := p.coordinator.Run(ctx, rows)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("enrich: %w", err)
	}

	if err := p.load(ctx, p.sink, out); err != nil {
		return domain.Summary{}, fmt.Errorf("write output: %w", err)
	}
	for _, pub := range p.publishers {
		if err := p.load(ctx, pub, out); err != nil {
			return domain.Summary{}, fmt.Errorf("publish: %w", err)
		}
		p.metrics.RowsPublished.Add(float64(len(out)))
	}

	summary := domain.Summarize(out)
	summary.RunID = p.runID
	summary.Duration = p.clock.Since(start)
	p.metrics.RunDuration.Observe(summary.Duration.Seconds())

	p.logger.Info("pipeline complete",
		"rows", summary.Rows,
		"google_address_coverage", summary.GoogleAddressCoverage,
		"nominatim_address_coverage", summary.NominatimAddressCoverage,
		"unique_google_zip", summary.UniqueGoogleZip,
		"unique_google_city", summary.UniqueGoogleCity,
		"duration", summary.Duration,
	)
	return summary, nil
}

// load retries a failed LoadBatch with exponential backoff.
func (p *Pipeline) load(ctx context.Context, l BatchLoader, rows []domain.EnrichedRow) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxLoadAttempts; attempt++ {
		if err = l.LoadBatch(ctx, rows); err == nil {
			return nil
		}
		p.logger.Error("load batch failed", "error", err, "attempt", attempt, "batch_size", len(rows))
		if attempt == maxLoadAttempts || !p.sleep(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	return err
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
