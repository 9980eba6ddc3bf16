package discovery

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// domainRateLimiter spaces requests to the same host by a fixed interval.
// Different hosts do not wait on each other.
type domainRateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
}

func newDomainRateLimiter(interval time.Duration) *domainRateLimiter {
	return &domainRateLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// wait blocks until a request to domain may be sent. The first request to a
// domain never waits.
func (d *domainRateLimiter) wait(ctx context.Context, domain string) error {
	if d.interval <= 0 {
		return nil
	}

	d.mu.Lock()
	limiter, ok := d.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(d.interval), 1)
		d.limiters[domain] = limiter
	}
	d.mu.Unlock()

	return limiter.Wait(ctx)
}

// extractDomain returns the host (with port) a URL points to.
func extractDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL: missing host in %q", rawURL)
	}
	return u.Host, nil
}

// PacedFetcher delays each request so that requests to one host are at least
// the configured delay apart.
type PacedFetcher struct {
	next    Fetcher
	limiter *domainRateLimiter
}

// NewPacedFetcher wraps next with per-host pacing. A delay of zero disables
// pacing.
func NewPacedFetcher(next Fetcher, delay time.Duration) *PacedFetcher {
	return &PacedFetcher{
		next:    next,
		limiter: newDomainRateLimiter(delay),
	}
}

// Fetch waits for the host's turn and then delegates.
func (p *PacedFetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	domain, err := extractDomain(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	if err := p.limiter.wait(ctx, domain); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	return p.next.Fetch(ctx, rawURL, headers)
}
