package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Enricher resolves one row against both services, Google first.
type Enricher struct {
	google    domain.ReverseGeocoder
	nominatim domain.ReverseGeocoder
	clock     clockwork.Clock
}

// NewEnricher creates an Enricher. A nil clock uses the real clock.
func NewEnricher(google, nominatim domain.ReverseGeocoder, clock clockwork.Clock) *Enricher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Enricher{google: google, nominatim: nominatim, clock: clock}
}

// Enrich returns the merged record for row. The two lookups run one after the
// other; any error is returned tagged with the row id.
func (e *Enricher) Enrich(ctx context.Context, row domain.InputRow) (domain.EnrichedRow, error) {
	g, err := e.google.ReverseGeocode(ctx, row.Coord)
	if err != nil {
		return domain.EnrichedRow{}, fmt.Errorf("row %d: %w", row.RowID, err)
	}
	n, err := e.nominatim.ReverseGeocode(ctx, row.Coord)
	if err != nil {
		return domain.EnrichedRow{}, fmt.Errorf("row %d: %w", row.RowID, err)
	}
	return domain.NewEnrichedRow(row, g, n, e.clock.Now().UTC()), nil
}
