package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
	"github.com/couchcryptid/geo-enrichment/internal/observability"
)

// ResponseStore persists serialized answers by cache key.
type ResponseStore interface {
	Get(ctx context.Context, key domain.CacheKey) ([]byte, bool, error)
	Put(ctx context.Context, key domain.CacheKey, payload []byte) error
}

// RateLimiter grants permission to call a service.
type RateLimiter interface {
	Wait(ctx context.Context, service domain.Service) error
}

// Provider decorates a service client with the response cache and the
// service's rate limit. Cache hits never wait for a slot or touch the network.
type Provider struct {
	inner   domain.ReverseGeocoder
	store   ResponseStore
	limiter RateLimiter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewProvider wraps inner with caching and rate limiting.
func NewProvider(inner domain.ReverseGeocoder, store ResponseStore, limiter RateLimiter, metrics *observability.Metrics, logger *slog.Logger) *Provider {
	return &Provider{
		inner:   inner,
		store:   store,
		limiter: limiter,
		metrics: metrics,
		logger:  logger.With("service", string(inner.Service())),
	}
}

func (p *Provider) Service() domain.Service { return p.inner.Service() }

// ReverseGeocode returns the cached answer for coord or fetches, persists and
// returns a fresh one. Empty answers are cached like any other.
func (p *Provider) ReverseGeocode(ctx context.Context, coord domain.Coordinate) (domain.NormalizedAddress, error) {
	service := p.inner.Service()
	label := string(service)

	if cc, ok := p.inner.(domain.CredentialChecker); ok {
		if err := cc.CheckCredentials(); err != nil {
			return domain.NormalizedAddress{}, err
		}
	}

	key := domain.NewCacheKey(service, coord)
	if addr, ok := p.lookup(ctx, key); ok {
		return addr, nil
	}

	waitStart := time.Now()
	if err := p.limiter.Wait(ctx, service); err != nil {
		return domain.NormalizedAddress{}, fmt.Errorf("%s rate limit: %w", service, err)
	}
	p.metrics.RateLimitWait.WithLabelValues(label).Observe(time.Since(waitStart).Seconds())

	start := time.Now()
	addr, err := p.inner.ReverseGeocode(ctx, coord)
	p.metrics.GeocodeAPIDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.GeocodeRequests.WithLabelValues(label, "error").Inc()
		return domain.NormalizedAddress{}, err
	}
	if addr.IsEmpty() {
		p.metrics.GeocodeRequests.WithLabelValues(label, "empty").Inc()
	} else {
		p.metrics.GeocodeRequests.WithLabelValues(label, "success").Inc()
	}

	payload, err := domain.EncodeAddress(service, addr)
	if err != nil {
		return domain.NormalizedAddress{}, err
	}
	if err := p.store.Put(ctx, key, payload); err != nil {
		return domain.NormalizedAddress{}, fmt.Errorf("persist %s: %w", key, err)
	}
	return addr, nil
}

// lookup reports a hit only for a payload that decodes. Read failures and
// corrupt entries are logged and treated as misses.
func (p *Provider) lookup(ctx context.Context, key domain.CacheKey) (domain.NormalizedAddress, bool) {
	label := string(key.Service)

	payload, found, err := p.store.Get(ctx, key)
	if err != nil {
		p.logger.Warn("cache read failed, treating as miss", "key", key.String(), "error", err)
		p.metrics.GeocodeCache.WithLabelValues(label, "error").Inc()
		return domain.NormalizedAddress{}, false
	}
	if !found {
		p.metrics.GeocodeCache.WithLabelValues(label, "miss").Inc()
		return domain.NormalizedAddress{}, false
	}

	addr, err := domain.DecodeAddress(key.Service, payload)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptEntry) {
			p.logger.Warn("corrupt cache entry, treating as miss", "key", key.String(), "digest", key.Digest())
			p.metrics.GeocodeCache.WithLabelValues(label, "corrupt").Inc()
		} else {
			p.logger.Warn("cache decode failed, treating as miss", "key", key.String(), "error", err)
			p.metrics.GeocodeCache.WithLabelValues(label, "error").Inc()
		}
		return domain.NormalizedAddress{}, false
	}

	p.metrics.GeocodeCache.WithLabelValues(label, "hit").Inc()
	return addr, true
}
