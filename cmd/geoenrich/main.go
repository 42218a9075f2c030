// Command geoenrich reverse-geocodes every coordinate in an input CSV with
// Google and Nominatim, writes the merged rows to an output CSV and prints a
// coverage summary.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/geo-enrichment/internal/adapter/cache"
	"github.com/couchcryptid/geo-enrichment/internal/adapter/csvfile"
	"github.com/couchcryptid/geo-enrichment/internal/adapter/google"
	httpadapter "github.com/couchcryptid/geo-enrichment/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/geo-enrichment/internal/adapter/kafka"
	"github.com/couchcryptid/geo-enrichment/internal/adapter/nominatim"
	"github.com/couchcryptid/geo-enrichment/internal/config"
	"github.com/couchcryptid/geo-enrichment/internal/domain"
	"github.com/couchcryptid/geo-enrichment/internal/observability"
	"github.com/couchcryptid/geo-enrichment/internal/pipeline"
	"github.com/couchcryptid/geo-enrichment/internal/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		input   string
		output  string
		workers int
	)

	cmd := &cobra.Command{
		Use:           "geoenrich",
		Short:         "Reverse-geocode a CSV of coordinates with Google and Nominatim",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, input, output, workers)
			if err != nil {
				slog.Error("invalid configuration", "error", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, observability.NewMetrics(), prometheus.DefaultGatherer, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input CSV (overrides INPUT_FILE)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV (overrides OUTPUT_FILE)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent rows, 1-64 (overrides WORKERS)")
	return cmd
}

// loadConfig reads the environment and applies any flags the user set.
func loadConfig(cmd *cobra.Command, input, output string, workers int) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputFile = input
	}
	if flags.Changed("output") {
		cfg.OutputFile = output
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, gatherer prometheus.Gatherer, out io.Writer) error {
	logger := observability.NewLogger(cfg)
	runID := uuid.NewString()

	store, err := cache.Open(cache.Options{
		Backend:    cache.Backend(cfg.CacheBackend),
		Dir:        cfg.CacheDir,
		SQLitePath: cfg.CacheSQLitePath,
		MemorySize: cfg.CacheMemorySize,
	})
	if err != nil {
		logger.Error("failed to open cache", "backend", cfg.CacheBackend, "error", err)
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("cache close error", "error", err)
		}
	}()

	limiter, err := ratelimit.New(nil, map[domain.Service]float64{
		domain.ServiceGoogle:    cfg.GoogleRPS,
		domain.ServiceNominatim: cfg.NominatimRPS,
	})
	if err != nil {
		return err
	}

	googleClient := google.NewClient(cfg.GoogleAPIKey, cfg.GoogleTimeout, logger,
		google.WithBaseURL(cfg.GoogleBaseURL),
		google.WithResultType(cfg.GoogleResultType),
	)
	nominatimClient := nominatim.NewClient(cfg.NominatimBaseURL, cfg.NominatimUserAgent, cfg.NominatimEmail, cfg.NominatimTimeout, logger)

	enricher := pipeline.NewEnricher(
		pipeline.NewProvider(googleClient, store, limiter, metrics, logger),
		pipeline.NewProvider(nominatimClient, store, limiter, metrics, logger),
		nil,
	)
	coordinator := pipeline.NewCoordinator(enricher, cfg.Workers, metrics, logger)

	opts := []pipeline.Option{pipeline.WithRunID(runID)}
	if cfg.KafkaEnabled() {
		publisher := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, runID, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		opts = append(opts, pipeline.WithPublisher(publisher))
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(
		csvfile.NewReader(cfg.InputFile, metrics, logger),
		coordinator,
		csvfile.NewWriter(cfg.OutputFile, logger),
		logger, metrics, opts...,
	)

	if cfg.MetricsAddr != "" {
		srvCtx, stopServer := context.WithCancel(ctx)
		srvDone := make(chan struct{})
		srv := httpadapter.NewServer(cfg.MetricsAddr, p, gatherer, logger)
		go func() {
			defer close(srvDone)
			if err := srv.Run(srvCtx, cfg.ShutdownTimeout); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			stopServer()
			<-srvDone
		}()
	}

	logger.Info("run starting",
		"run_id", runID,
		"input", cfg.InputFile,
		"output", cfg.OutputFile,
		"workers", coordinator.Workers(),
		"cache", cfg.CacheBackend,
	)

	summary, err := p.Run(ctx)
	if err != nil {
		logger.Error("run failed", "run_id", runID, "error", err)
		return err
	}

	printSummary(out, cfg.OutputFile, summary)
	return nil
}

func printSummary(w io.Writer, outputFile string, s domain.Summary) {
	fmt.Fprintf(w, "Wrote %d rows to %s\n", s.Rows, outputFile)
	fmt.Fprintf(w, "Run:                        %s\n", s.RunID)
	fmt.Fprintf(w, "Google address coverage:    %d/%d\n", s.GoogleAddressCoverage, s.Rows)
	fmt.Fprintf(w, "Nominatim address coverage: %d/%d\n", s.NominatimAddressCoverage, s.Rows)
	fmt.Fprintf(w, "Unique Google zip codes:    %d\n", s.UniqueGoogleZip)
	fmt.Fprintf(w, "Unique Google cities:       %d\n", s.UniqueGoogleCity)
	fmt.Fprintf(w, "Unique Nominatim zip codes: %d\n", s.UniqueNominatimZip)
	fmt.Fprintf(w, "Unique Nominatim cities:    %d\n", s.UniqueNominatimCity)
	fmt.Fprintf(w, "Total time:                 %s\n", s.Duration.Round(time.Millisecond))
}
