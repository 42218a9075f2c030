// Package csvfile reads input coordinates from and writes enriched rows to
// CSV files.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
	"github.com/couchcryptid/geo-enrichment/internal/observability"
	"github.com/jszwec/csvutil"
)

// inputRecord maps the input columns this tool reads. Other columns are ignored.
type inputRecord struct {
	RowID     string `csv:"row_id"`
	Latitude  string `csv:"latitude"`
	Longitude string `csv:"longitude"`
	Sentiment string `csv:"sentiment"`
	Timestamp string `csv:"timestamp"`
}

// Reader extracts InputRows from a CSV file.
type Reader struct {
	path    string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewReader creates a Reader for path.
func NewReader(path string, metrics *observability.Metrics, logger *slog.Logger) *Reader {
	return &Reader{path: path, metrics: metrics, logger: logger}
}

// Extract reads every row with a usable coordinate. Rows whose latitude or
// longitude is missing, non-numeric or out of range are dropped. When the file
// has a row_id column its values are kept; otherwise rows are numbered from 1
// in file order after filtering.
func (r *Reader) Extract(ctx context.Context) ([]domain.InputRow, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	rows, dropped, err := decode(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}

	if dropped > 0 {
		r.logger.Warn("dropped rows with invalid coordinates", "dropped", dropped, "kept", len(rows))
		r.metrics.RowsDropped.Add(float64(dropped))
	}
	r.logger.Info("input loaded", "path", r.path, "rows", len(rows))
	return rows, nil
}

func decode(ctx context.Context, in io.Reader) ([]domain.InputRow, int, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(&paddedReader{r: cr})
	if errors.Is(err, io.EOF) {
		return nil, 0, errors.New("input is empty")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	header := dec.Header()
	for _, col := range []string{"latitude", "longitude"} {
		if !slices.Contains(header, col) {
			return nil, 0, fmt.Errorf("missing required column %q", col)
		}
	}
	hasRowID := slices.Contains(header, "row_id")

	var (
		rows    []domain.InputRow
		dropped int
		seen    = map[int64]struct{}{}
		line    = 1
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		var rec inputRecord
		if err := dec.Decode(&rec); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		coord, ok := parseCoordinate(rec.Latitude, rec.Longitude)
		if !ok {
			dropped++
			continue
		}

		id := int64(len(rows) + 1)
		if hasRowID {
			id, err = strconv.ParseInt(strings.TrimSpace(rec.RowID), 10, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("line %d: invalid row_id %q", line, rec.RowID)
			}
		}
		if _, dup := seen[id]; dup {
			return nil, 0, fmt.Errorf("line %d: duplicate row_id %d", line, id)
		}
		seen[id] = struct{}{}

		rows = append(rows, domain.InputRow{
			RowID:     id,
			Coord:     coord,
			Sentiment: domain.Optional(rec.Sentiment),
			Timestamp: domain.Optional(rec.Timestamp),
		})
	}
	return rows, dropped, nil
}

// paddedReader fills short records up to the header width with empty cells,
// so a truncated row reaches the coordinate check and is dropped there.
// Records longer than the header are passed through and rejected by the
// decoder.
type paddedReader struct {
	r     *csv.Reader
	width int
}

func (p *paddedReader) Read() ([]string, error) {
	rec, err := p.r.Read()
	if err != nil {
		return nil, err
	}
	if p.width == 0 {
		p.width = len(rec)
		return rec, nil
	}
	for len(rec) < p.width {
		rec = append(rec, "")
	}
	return rec, nil
}

func parseCoordinate(lat, lon string) (domain.Coordinate, bool) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	c := domain.Coordinate{Lat: la, Lon: lo}
	return c, c.Valid()
}
