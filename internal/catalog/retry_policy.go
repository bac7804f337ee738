package catalog

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Backoff computes exponential retry delays: Base * Multiplier^(retry-1),
// capped at Max.
type Backoff struct {
	MaxRetries int
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

// DefaultBackoff matches the acquisition defaults: three retries starting at
// two seconds, doubling, capped at ten seconds.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxRetries: 3,
		Base:       2 * time.Second,
		Multiplier: 2,
		Max:        10 * time.Second,
	}
}

// Validate rejects nonsensical combinations.
func (b Backoff) Validate() error {
	if b.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if b.Base < 0 {
		return fmt.Errorf("retry.base_delay must be >= 0")
	}
	if b.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1")
	}
	if b.Max < b.Base {
		return fmt.Errorf("retry.max_delay must be >= retry.base_delay")
	}
	return nil
}

// Delay returns the wait before the given retry (1-based).
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	delay := float64(b.Base) * math.Pow(b.Multiplier, float64(retry-1))
	if delay > float64(b.Max) || math.IsInf(delay, 0) {
		return b.Max
	}
	return time.Duration(delay)
}

// Pauser sleeps between retries.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

// TimerPauser waits on a timer and returns early when ctx is done.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is canceled.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
