package csvfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
	"github.com/jszwec/csvutil"
)

// outputRecord fixes the output column order.
type outputRecord struct {
	RowID            int64   `csv:"row_id"`
	Timestamp        *string `csv:"timestamp"`
	Lat              string  `csv:"lat"`
	Lon              string  `csv:"lon"`
	LatLon           string  `csv:"latlon"`
	GoogleAddress    *string `csv:"google_address"`
	GoogleZipCode    *string `csv:"google_zip_code"`
	GoogleCity       *string `csv:"google_city"`
	GoogleCountry    *string `csv:"google_country"`
	GoogleState      *string `csv:"google_state"`
	GoogleNearestPOI *string `csv:"google_nearest_poi"`
	NominatimAddress *string `csv:"nominatim_address"`
	NominatimZipCode *string `csv:"nominatim_zip_code"`
	NominatimCity    *string `csv:"nominatim_city"`
	NominatimCountry *string `csv:"nominatim_country"`
	NominatimState   *string `csv:"nominatim_state"`
	Sentiment        *string `csv:"sentiment"`
}

func toOutputRecord(r domain.EnrichedRow) outputRecord {
	return outputRecord{
		RowID:            r.RowID,
		Timestamp:        r.Timestamp,
		Lat:              domain.FormatDecimal(r.Lat),
		Lon:              domain.FormatDecimal(r.Lon),
		LatLon:           r.LatLon,
		GoogleAddress:    r.GoogleAddress,
		GoogleZipCode:    r.GoogleZipCode,
		GoogleCity:       r.GoogleCity,
		GoogleCountry:    r.GoogleCountry,
		GoogleState:      r.GoogleState,
		GoogleNearestPOI: r.GoogleNearestPOI,
		NominatimAddress: r.NominatimAddress,
		NominatimZipCode: r.NominatimZipCode,
		NominatimCity:    r.NominatimCity,
		NominatimCountry: r.NominatimCountry,
		NominatimState:   r.NominatimState,
		Sentiment:        r.Sentiment,
	}
}

// Writer implements pipeline.BatchLoader by replacing a CSV file.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a Writer for path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// LoadBatch writes rows, in the order given, to a temp file next to the
// target and renames it into place. A failed write leaves any previous file
// untouched.
func (w *Writer) LoadBatch(_ context.Context, rows []domain.EnrichedRow) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if err := encode(tmp, rows); err != nil {
		tmp.Close() //nolint:errcheck,gosec // encode error takes precedence
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}

	w.logger.Info("output written", "path", w.path, "rows", len(rows))
	return nil
}

func encode(out io.Writer, rows []domain.EnrichedRow) error {
	bw := bufio.NewWriter(out)
	cw := csv.NewWriter(bw)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(outputRecord{}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := enc.Encode(toOutputRecord(r)); err != nil {
			return fmt.Errorf("row %d: %w", r.RowID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}
