// Package ratelimit spaces calls to external services.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Limiter enforces a minimum period between successive calls per service.
//
// Slots are reserved, not polled: Wait commits the caller to the next free
// slot before sleeping, so concurrent callers are ordered at reservation time
// and the limit bounds call issuance, not call duration. A reservation is
// never returned, even if the caller gives up waiting or its call fails.
type Limiter struct {
	clock    clockwork.Clock
	services map[domain.Service]*slot
}

// slot serializes reservations for one service so the clock reading and the
// reservation it feeds are taken together.
type slot struct {
	mu  sync.Mutex
	lim *rate.Limiter
}

// New creates a Limiter with one slot per period (1/rps) for each service.
func New(clock clockwork.Clock, rates map[domain.Service]float64) (*Limiter, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := &Limiter{
		clock:    clock,
		services: make(map[domain.Service]*slot, len(rates)),
	}
	for svc, rps := range rates {
		if rps <= 0 {
			return nil, fmt.Errorf("ratelimit: rate for %s must be positive, got %v", svc, rps)
		}
		// Burst of one: the first call is free, every later call waits a full period.
		l.services[svc] = &slot{lim: rate.NewLimiter(rate.Limit(rps), 1)}
	}
	return l, nil
}

// Wait blocks until the caller may issue the next call to service.
func (l *Limiter) Wait(ctx context.Context, service domain.Service) error {
	delay, err := l.reserve(service)
	if err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}

	timer := l.clock.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// Period returns the configured spacing for service.
func (l *Limiter) Period(service domain.Service) (time.Duration, bool) {
	s, ok := l.services[service]
	if !ok {
		return 0, false
	}
	return time.Duration(float64(time.Second) / float64(s.lim.Limit())), true
}

// reserve commits the next slot for service and returns how long the caller
// must sleep before using it.
func (l *Limiter) reserve(service domain.Service) (time.Duration, error) {
	s, ok := l.services[service]
	if !ok {
		return 0, fmt.Errorf("ratelimit: unknown service %q", service)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.clock.Now()
	r := s.lim.ReserveN(now, 1)
	if !r.OK() {
		return 0, fmt.Errorf("ratelimit: %s: reservation refused", service)
	}
	return r.DelayFrom(now), nil
}
