package pipeline_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/geo-enrichment/internal/adapter/cache"
	"github.com/couchcryptid/geo-enrichment/internal/adapter/google"
	"github.com/couchcryptid/geo-enrichment/internal/domain"
	"github.com/couchcryptid/geo-enrichment/internal/pipeline"
	"github.com/couchcryptid/geo-enrichment/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stLouis = domain.Coordinate{Lat: 38.6270, Lon: -90.1994}

func TestProvider_SecondLookupHitsCache(t *testing.T) {
	inner := &countingGeocoder{
		service: domain.ServiceNominatim,
		result:  domain.NormalizedAddress{City: strPtr("St. Louis"), PostalCode: strPtr("63102")},
	}
	store := newCountingStore()
	limiter := &countingLimiter{}
	metrics := newTestMetrics()
	p := pipeline.NewProvider(inner, store, limiter, metrics, discardLogger())

	a1, err := p.ReverseGeocode(context.Background(), stLouis)
	require.NoError(t, err)
	a2, err := p.ReverseGeocode(context.Background(), stLouis)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.EqualValues(t, 1, inner.calls.Load(), "one network call")
	assert.EqualValues(t, 1, store.puts.Load(), "one cache write")
	assert.Equal(t, 1, limiter.count(domain.ServiceNominatim), "hits do not consume a slot")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("nominatim", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("nominatim", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("nominatim", "success")))
}

func TestProvider_NearbyCoordinatesShareEntry(t *testing.T) {
	inner := &countingGeocoder{service: domain.ServiceGoogle, result: domain.NormalizedAddress{City: strPtr("X")}}
	p := pipeline.NewProvider(inner, newCountingStore(), &countingLimiter{}, newTestMetrics(), discardLogger())

	_, err := p.ReverseGeocode(context.Background(), domain.Coordinate{Lat: 38.627001, Lon: -90.199401})
	require.NoError(t, err)
	_, err = p.ReverseGeocode(context.Background(), domain.Coordinate{Lat: 38.627004, Lon: -90.199396})
	require.NoError(t, err)

	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestProvider_EmptyAnswerIsCached(t *testing.T) {
	inner := &countingGeocoder{service: domain.ServiceGoogle}
	store := newCountingStore()
	metrics := newTestMetrics()
	p := pipeline.NewProvider(inner, store, &countingLimiter{}, metrics, discardLogger())

	for range 2 {
		addr, err := p.ReverseGeocode(context.Background(), stLouis)
		require.NoError(t, err)
		assert.True(t, addr.IsEmpty())
	}

	assert.EqualValues(t, 1, inner.calls.Load())
	payload, ok, err := store.inner.Get(context.Background(), domain.NewCacheKey(domain.ServiceGoogle, stLouis))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{
		"google_formatted_address": null, "google_zip": null, "google_city": null,
		"google_state": null, "google_country": null, "google_poi": null
	}`, string(payload))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("google", "empty")))
}

func TestProvider_CorruptEntryIsMiss(t *testing.T) {
	inner := &countingGeocoder{service: domain.ServiceNominatim, result: domain.NormalizedAddress{City: strPtr("St. Louis")}}
	store := newCountingStore()
	key := domain.NewCacheKey(domain.ServiceNominatim, stLouis)
	require.NoError(t, store.inner.Put(context.Background(), key, []byte("{truncated")))
	metrics := newTestMetrics()
	p := pipeline.NewProvider(inner, store, &countingLimiter{}, metrics, discardLogger())

	addr, err := p.ReverseGeocode(context.Background(), stLouis)
	require.NoError(t, err)
	assert.Equal(t, "St. Louis", *addr.City)
	assert.EqualValues(t, 1, inner.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("nominatim", "corrupt")))

	payload, _, err := store.inner.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"nominatim_city":"St. Louis"`, "corrupt entry is overwritten")
}

func TestProvider_StoreReadErrorIsMiss(t *testing.T) {
	inner := &countingGeocoder{service: domain.ServiceGoogle}
	store := newCountingStore()
	store.getErr = errors.New("disk on fire")
	metrics := newTestMetrics()
	p := pipeline.NewProvider(inner, store, &countingLimiter{}, metrics, discardLogger())

	_, err := p.ReverseGeocode(context.Background(), stLouis)
	require.NoError(t, err)
	assert.EqualValues(t, 1, inner.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("google", "error")))
}

func TestProvider_StoreWriteErrorFails(t *testing.T) {
	inner := &countingGeocoder{service: domain.ServiceGoogle}
	store := newCountingStore()
	store.putErr = errors.New("read-only filesystem")
	p := pipeline.NewProvider(inner, store, &countingLimiter{}, newTestMetrics(), discardLogger())

	_, err := p.ReverseGeocode(context.Background(), stLouis)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only filesystem")
}

func TestProvider_CredentialCheckedBeforeCache(t *testing.T) {
	inner := &credentialGeocoder{countingGeocoder{service: domain.ServiceGoogle}}
	store := newCountingStore()
	require.NoError(t, store.inner.Put(context.Background(), domain.NewCacheKey(domain.ServiceGoogle, stLouis), []byte(`{}`)))
	limiter := &countingLimiter{}
	p := pipeline.NewProvider(inner, store, limiter, newTestMetrics(), discardLogger())

	_, err := p.ReverseGeocode(context.Background(), stLouis)
	require.ErrorIs(t, err, domain.ErrMissingCredential)

	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Zero(t, store.gets.Load(), "cache is not consulted without a credential")
	assert.Zero(t, limiter.count(domain.ServiceGoogle))
	assert.Zero(t, inner.calls.Load())
}

func TestProvider_TransportErrorNotCached(t *testing.T) {
	transportErr := &domain.TransportError{Service: domain.ServiceNominatim, Err: errors.New("connection reset")}
	inner := &countingGeocoder{service: domain.ServiceNominatim, err: transportErr}
	store := newCountingStore()
	metrics := newTestMetrics()
	p := pipeline.NewProvider(inner, store, &countingLimiter{}, metrics, discardLogger())

	_, err := p.ReverseGeocode(context.Background(), stLouis)
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, store.puts.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("nominatim", "error")))
}

func TestProvider_LimiterErrorStopsCall(t *testing.T) {
	inner := &countingGeocoder{service: domain.ServiceGoogle}
	limiter := &countingLimiter{err: context.Canceled}
	p := pipeline.NewProvider(inner, newCountingStore(), limiter, newTestMetrics(), discardLogger())

	_, err := p.ReverseGeocode(context.Background(), stLouis)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, inner.calls.Load())
}

// TestProvider_GoogleScenario drives the real Google client and file store
// end to end against a local server.
func TestProvider_GoogleScenario(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "38.627,-90.1994", r.URL.Query().Get("latlng"))
		_, _ = io.WriteString(w, `{"status":"OK","results":[{
			"formatted_address":"St. Louis, MO 63101, USA",
			"types":["route"],
			"address_components":[
				{"long_name":"St. Louis","types":["locality","political"]},
				{"long_name":"63101","types":["postal_code"]}
			]}]}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	store, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	limiter, err := ratelimit.New(nil, map[domain.Service]float64{domain.ServiceGoogle: 100})
	require.NoError(t, err)
	client := google.NewClient("test-key", 5*time.Second, discardLogger(), google.WithBaseURL(srv.URL))
	p := pipeline.NewProvider(client, store, limiter, newTestMetrics(), discardLogger())

	addr, err := p.ReverseGeocode(context.Background(), stLouis)
	require.NoError(t, err)
	assert.Equal(t, "St. Louis", *addr.City)
	assert.Equal(t, "63101", *addr.PostalCode)

	data, err := os.ReadFile(filepath.Join(dir, "c7b15b501aaa83314c16e448cdd780e0b1cab847.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"google_zip":"63101"`)

	_, err = p.ReverseGeocode(context.Background(), stLouis)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestProvider_GoogleZeroResultsScenario(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"status":"ZERO_RESULTS","results":[]}`)
	}))
	defer srv.Close()

	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	limiter, err := ratelimit.New(nil, map[domain.Service]float64{domain.ServiceGoogle: 100})
	require.NoError(t, err)
	client := google.NewClient("test-key", 5*time.Second, discardLogger(), google.WithBaseURL(srv.URL))
	p := pipeline.NewProvider(client, store, limiter, newTestMetrics(), discardLogger())

	for range 2 {
		addr, err := p.ReverseGeocode(context.Background(), stLouis)
		require.NoError(t, err)
		assert.True(t, addr.IsEmpty())
	}
	assert.EqualValues(t, 1, hits.Load(), "second lookup is served from the cache")
}

func TestProvider_GoogleMissingKeyScenario(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	limiter, err := ratelimit.New(nil, map[domain.Service]float64{domain.ServiceGoogle: 100})
	require.NoError(t, err)
	client := google.NewClient("", time.Second, discardLogger(), google.WithBaseURL("http://127.0.0.1:1"))
	p := pipeline.NewProvider(client, store, limiter, newTestMetrics(), discardLogger())

	_, err = p.ReverseGeocode(context.Background(), stLouis)
	require.ErrorIs(t, err, domain.ErrMissingCredential)
}
