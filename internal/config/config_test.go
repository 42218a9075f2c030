package config

import (
	"testing"
	"time"

	"github.com/couchcryptid/geo-enrichment/internal/adapter/google"
	"github.com/couchcryptid/geo-enrichment/internal/adapter/nominatim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/tweets_raw.csv", cfg.InputFile)
	assert.Equal(t, "data/gps_points_geocoded.csv", cfg.OutputFile)
	assert.Equal(t, DefaultWorkers(), cfg.Workers)
	assert.Empty(t, cfg.GoogleAPIKey, "a missing key is reported at first use, not at load")
	assert.Equal(t, 10.0, cfg.GoogleRPS)
	assert.Equal(t, 20*time.Second, cfg.GoogleTimeout)
	assert.Equal(t, google.DefaultBaseURL, cfg.GoogleBaseURL)
	assert.Equal(t, google.DefaultResultType, cfg.GoogleResultType)
	assert.Equal(t, 1.0, cfg.NominatimRPS)
	assert.Equal(t, 30*time.Second, cfg.NominatimTimeout)
	assert.Equal(t, nominatim.DefaultBaseURL, cfg.NominatimBaseURL)
	assert.Equal(t, nominatim.DefaultUserAgent, cfg.NominatimUserAgent)
	assert.Equal(t, "file", cfg.CacheBackend)
	assert.Equal(t, "data/.geo_cache", cfg.CacheDir)
	assert.Equal(t, "data/geo_cache.db", cfg.CacheSQLitePath)
	assert.Equal(t, 10000, cfg.CacheMemorySize)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "enriched-geo-points", cfg.KafkaTopic)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("INPUT_FILE", "in.csv")
	t.Setenv("OUTPUT_FILE", "out.csv")
	t.Setenv("WORKERS", "16")
	t.Setenv("GOOGLE_API_KEY", "AIza-test")
	t.Setenv("GOOGLE_RPS", "25")
	t.Setenv("GOOGLE_TIMEOUT", "5s")
	t.Setenv("NOMINATIM_RPS", "0.5")
	t.Setenv("NOMINATIM_EMAIL", "ops@example.org")
	t.Setenv("CACHE_BACKEND", "sqlite")
	t.Setenv("CACHE_SQLITE_PATH", "/tmp/cache.db")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "points")
	t.Setenv("METRICS_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "in.csv", cfg.InputFile)
	assert.Equal(t, "out.csv", cfg.OutputFile)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, "AIza-test", cfg.GoogleAPIKey)
	assert.Equal(t, 25.0, cfg.GoogleRPS)
	assert.Equal(t, 5*time.Second, cfg.GoogleTimeout)
	assert.Equal(t, 0.5, cfg.NominatimRPS)
	assert.Equal(t, "ops@example.org", cfg.NominatimEmail)
	assert.Equal(t, "sqlite", cfg.CacheBackend)
	assert.Equal(t, "/tmp/cache.db", cfg.CacheSQLitePath)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "points", cfg.KafkaTopic)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"workers not a number", "WORKERS", "many", "WORKERS"},
		{"workers above ceiling", "WORKERS", "65", "WORKERS"},
		{"negative google rps", "GOOGLE_RPS", "-1", "GOOGLE_RPS"},
		{"nominatim above policy", "NOMINATIM_RPS", "2", "NOMINATIM_RPS"},
		{"google below nominatim", "GOOGLE_RPS", "0.5", "GOOGLE_RPS must be at least 10 times"},
		{"google under tenfold", "GOOGLE_RPS", "9", "GOOGLE_RPS must be at least 10 times"},
		{"bad timeout", "GOOGLE_TIMEOUT", "soon", "GOOGLE_TIMEOUT"},
		{"zero timeout", "NOMINATIM_TIMEOUT", "0s", "NOMINATIM_TIMEOUT"},
		{"unknown backend", "CACHE_BACKEND", "redis", "CACHE_BACKEND"},
		{"bad memory size", "CACHE_MEMORY_SIZE", "0", "CACHE_MEMORY_SIZE"},
		{"bad shutdown timeout", "SHUTDOWN_TIMEOUT", "x", "SHUTDOWN_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_AfterOverride(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Workers = 0
	require.Error(t, cfg.Validate())

	cfg.Workers = MaxWorkers
	require.NoError(t, cfg.Validate())

	cfg.GoogleRPS = 5
	cfg.NominatimRPS = 0.5
	require.NoError(t, cfg.Validate(), "ratio holds at lower rates")

	cfg.NominatimRPS = 1
	require.Error(t, cfg.Validate())
	cfg.NominatimRPS = 0.5

	cfg.OutputFile = ""
	require.Error(t, cfg.Validate())
}

func TestDefaultWorkers(t *testing.T) {
	w := DefaultWorkers()
	assert.GreaterOrEqual(t, w, 1)
	assert.LessOrEqual(t, w, 8)
}

func TestParseBrokers(t *testing.T) {
	assert.Nil(t, parseBrokers(""))
	assert.Equal(t, []string{"a:1"}, parseBrokers(" a:1 ,, "))
}
