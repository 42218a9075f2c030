package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/geo-enrichment/internal/adapter/google"
	"github.com/couchcryptid/geo-enrichment/internal/adapter/nominatim"
)

const (
	// MaxWorkers caps the row worker pool.
	MaxWorkers = 64

	// MaxNominatimRPS is the public server's usage-policy ceiling.
	MaxNominatimRPS = 1.0

	// MinRateRatio is how many times faster than Nominatim Google must be
	// allowed to run.
	MinRateRatio = 10.0
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	InputFile  string
	OutputFile string
	Workers    int

	GoogleAPIKey     string
	GoogleBaseURL    string
	GoogleRPS        float64
	GoogleTimeout    time.Duration
	GoogleResultType string

	NominatimBaseURL   string
	NominatimRPS       float64
	NominatimTimeout   time.Duration
	NominatimUserAgent string
	NominatimEmail     string

	CacheBackend    string
	CacheDir        string
	CacheSQLitePath string
	CacheMemorySize int

	// Kafka output is disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	// The metrics server is disabled when MetricsAddr is empty.
	MetricsAddr     string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	workers, err := parsePositiveInt("WORKERS", DefaultWorkers())
	if err != nil {
		return nil, err
	}
	googleRPS, err := parsePositiveFloat("GOOGLE_RPS", 10)
	if err != nil {
		return nil, err
	}
	googleTimeout, err := parseDuration("GOOGLE_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	nominatimRPS, err := parsePositiveFloat("NOMINATIM_RPS", 1)
	if err != nil {
		return nil, err
	}
	nominatimTimeout, err := parseDuration("NOMINATIM_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	memorySize, err := parsePositiveInt("CACHE_MEMORY_SIZE", 10000)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		InputFile:  envOrDefault("INPUT_FILE", "data/tweets_raw.csv"),
		OutputFile: envOrDefault("OUTPUT_FILE", "data/gps_points_geocoded.csv"),
		Workers:    workers,

		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		GoogleBaseURL:    envOrDefault("GOOGLE_BASE_URL", google.DefaultBaseURL),
		GoogleRPS:        googleRPS,
		GoogleTimeout:    googleTimeout,
		GoogleResultType: envOrDefault("GOOGLE_RESULT_TYPE", google.DefaultResultType),

		NominatimBaseURL:   envOrDefault("NOMINATIM_BASE_URL", nominatim.DefaultBaseURL),
		NominatimRPS:       nominatimRPS,
		NominatimTimeout:   nominatimTimeout,
		NominatimUserAgent: envOrDefault("NOMINATIM_USER_AGENT", nominatim.DefaultUserAgent),
		NominatimEmail:     os.Getenv("NOMINATIM_EMAIL"),

		CacheBackend:    envOrDefault("CACHE_BACKEND", "file"),
		CacheDir:        envOrDefault("CACHE_DIR", "data/.geo_cache"),
		CacheSQLitePath: envOrDefault("CACHE_SQLITE_PATH", "data/geo_cache.db"),
		CacheMemorySize: memorySize,

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "enriched-geo-points"),

		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Load calls it; callers that
// override fields afterwards (command-line flags) should call it again.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return errors.New("INPUT_FILE is required")
	}
	if c.OutputFile == "" {
		return errors.New("OUTPUT_FILE is required")
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("WORKERS must be between 1 and %d, got %d", MaxWorkers, c.Workers)
	}
	if c.NominatimRPS > MaxNominatimRPS {
		return fmt.Errorf("NOMINATIM_RPS must not exceed %v, got %v", MaxNominatimRPS, c.NominatimRPS)
	}
	if c.GoogleRPS < MinRateRatio*c.NominatimRPS {
		return fmt.Errorf("GOOGLE_RPS must be at least %v times NOMINATIM_RPS, got %v and %v",
			MinRateRatio, c.GoogleRPS, c.NominatimRPS)
	}
	switch c.CacheBackend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of file, sqlite, memory; got %q", c.CacheBackend)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// KafkaEnabled reports whether enriched rows are also published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// DefaultWorkers is min(8, 4*NumCPU).
func DefaultWorkers() int {
	return min(8, 4*runtime.NumCPU())
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}

func parsePositiveFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return f, nil
}
