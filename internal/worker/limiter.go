package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum delay between requests to the same host
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultDelay time.Duration
}

// NewLimiter creates a per-host limiter. A minDelay <= 0 disables limiting
// for hosts without their own delay.
func NewLimiter(minDelay time.Duration) *Limiter {
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultDelay: minDelay,
	}
}

// Wait blocks until a request to rawURL's host is allowed or ctx is done
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	return l.getLimiter(host).Wait(ctx)
}

// Allow reports whether a request may go out now, consuming the slot if so
func (l *Limiter) Allow(rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}
	return l.getLimiter(host).Allow()
}

// SetHostDelay overrides the minimum delay for one host
func (l *Limiter) SetHostDelay(host string, minDelay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters[host] = newRateLimiter(minDelay)
}

func (l *Limiter) getLimiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}

	limiter = newRateLimiter(l.defaultDelay)
	l.limiters[host] = limiter
	return limiter
}

func newRateLimiter(minDelay time.Duration) *rate.Limiter {
	if minDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(minDelay), 1)
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return parsed.Host, nil
}
