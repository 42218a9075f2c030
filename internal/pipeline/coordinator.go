package pipeline

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/couchcryptid/geo-enrichment/internal/config"
	"github.com/couchcryptid/geo-enrichment/internal/domain"
	"github.com/couchcryptid/geo-enrichment/internal/observability"
	"golang.org/x/sync/errgroup"
)

// RowEnricher turns one input row into its output record.
type RowEnricher interface {
	Enrich(ctx context.Context, row domain.InputRow) (domain.EnrichedRow, error)
}

// Coordinator fans rows out to a bounded pool of workers and gathers the
// results back in row_id order.
type Coordinator struct {
	enricher RowEnricher
	workers  int
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator running at most workers rows at once.
// workers is clamped to [1, config.MaxWorkers].
func NewCoordinator(enricher RowEnricher, workers int, metrics *observability.Metrics, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		enricher: enricher,
		workers:  min(max(workers, 1), config.MaxWorkers),
		metrics:  metrics,
		logger:   logger,
	}
}

// Workers returns the effective pool size.
func (c *Coordinator) Workers() int { return c.workers }

// Run enriches every row and returns the results sorted by row_id.
//
// The first row error stops dispatch: rows not yet started are skipped, rows
// already in flight run to completion (their answers still reach the cache),
// and the error is returned with no rows.
func (c *Coordinator) Run(ctx context.Context, rows []domain.InputRow) ([]domain.EnrichedRow, error) {
	results := make([]domain.EnrichedRow, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, row := range rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			// In-flight rows use the parent context so a sibling's failure
			// does not cut them short.
			out, err := c.enricher.Enrich(ctx, row)
			if err != nil {
				c.metrics.RowErrors.Inc()
				c.logger.Error("row enrichment failed", "row_id", row.RowID, "error", err)
				return err
			}
			results[i] = out
			c.metrics.RowsEnriched.Inc()
			c.logger.Debug("row enriched", "row_id", row.RowID, "latlon", out.LatLon)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b domain.EnrichedRow) int {
		return cmp.Compare(a.RowID, b.RowID)
	})
	return results, nil
}
