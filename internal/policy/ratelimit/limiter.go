// Package ratelimit enforces a minimum interval between outbound API requests.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/catalog-pipeline/internal/metrics"
)

// DefaultInterval allows one request per second.
const DefaultInterval = time.Second

// Limiter owns the "last permitted call" state for one API client. The first
// Wait never blocks; each later Wait returns no sooner than interval after the
// previous one.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// Config holds rate limiter configuration.
type Config struct {
	// Interval is the minimum spacing between permitted calls. Zero selects
	// DefaultInterval; a negative value disables limiting.
	Interval time.Duration
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	limit := rate.Every(interval)
	if interval < 0 {
		limit = rate.Inf
		interval = 0
	}
	return &Limiter{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Interval reports the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the next call is permitted or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitWait(waited)
	}
	return nil
}
