// Command genmock writes a synthetic input CSV for local geoenrich runs. The
// same flags always produce the same file.
//
// Usage:
//
//	go run ./cmd/genmock --rows 200 --out data/tweets_raw.csv
package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jszwec/csvutil"
	"github.com/spf13/cobra"
)

// baseTime is the timestamp of the first generated row.
var baseTime = time.Date(2023, time.March, 1, 10, 0, 0, 0, time.UTC)

var sentiments = []string{"positive", "negative", "neutral"}

// mockRecord mirrors the columns of a raw tweet export.
type mockRecord struct {
	Timestamp    string `csv:"timestamp"`
	LocationType string `csv:"location_type"`
	Longitude    string `csv:"longitude"`
	Latitude     string `csv:"latitude"`
	Sentiment    string `csv:"sentiment"`
}

type options struct {
	rows         int
	seed         uint64
	centerLat    float64
	centerLon    float64
	spread       float64
	invalidEvery int
	interval     time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		opts options
		out  string
	)
	cmd := &cobra.Command{
		Use:          "genmock",
		Short:        "Generate a reproducible input CSV of coordinates",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			if opts.rows < 1 {
				return fmt.Errorf("--rows must be positive, got %d", opts.rows)
			}
			if err := writeFile(out, opts); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			log.Printf("wrote %d rows to %s", opts.rows, out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&out, "out", "data/tweets_raw.csv", "output path")
	f.IntVar(&opts.rows, "rows", 100, "number of rows")
	f.Uint64Var(&opts.seed, "seed", 1, "random seed")
	f.Float64Var(&opts.centerLat, "lat", 38.6270, "latitude of the sampling center")
	f.Float64Var(&opts.centerLon, "lon", -90.1994, "longitude of the sampling center")
	f.Float64Var(&opts.spread, "spread", 0.05, "maximum offset from the center in degrees")
	f.IntVar(&opts.invalidEvery, "invalid-every", 0, "make every Nth row's coordinate unparseable (0 disables)")
	f.DurationVar(&opts.interval, "interval", 5*time.Minute, "time between successive rows")
	return cmd
}

func writeFile(path string, opts options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := generate(f, opts); err != nil {
		f.Close() //nolint:errcheck,gosec // generate error takes precedence
		return err
	}
	return f.Close()
}

// generate writes opts.rows records. Timestamps advance by opts.interval on a
// fake clock and coordinates are drawn from a seeded PCG source.
func generate(w io.Writer, opts options) error {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed)) //nolint:gosec // fixtures, not secrets
	clock := clockwork.NewFakeClockAt(baseTime)

	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	enc := csvutil.NewEncoder(cw)

	for i := 1; i <= opts.rows; i++ {
		rec := mockRecord{
			Timestamp:    clock.Now().Format(time.DateTime),
			LocationType: "point",
			Latitude:     fmt.Sprintf("%.6f", opts.centerLat+jitter(rng, opts.spread)),
			Longitude:    fmt.Sprintf("%.6f", opts.centerLon+jitter(rng, opts.spread)),
			Sentiment:    sentiments[rng.IntN(len(sentiments))],
		}
		if opts.invalidEvery > 0 && i%opts.invalidEvery == 0 {
			rec.Latitude = "n/a"
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		clock.Advance(opts.interval)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

func jitter(rng *rand.Rand, spread float64) float64 {
	return (rng.Float64()*2 - 1) * spread
}
