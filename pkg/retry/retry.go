// Package retry provides exponential backoff for calls to external
// services, respecting explicit retryability on classified errors.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config defines backoff behavior.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, +/- fraction of the delay
}

// DefaultConfig suits model warmup and pool creation: 3 retries starting
// at 500ms, capped at 10s.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// RetryableError is implemented by errors that declare their own
// retryability, such as classified completion-service errors.
type RetryableError interface {
	error
	IsRetryable() bool
}

// IsRetryable reports whether err is worth retrying. Errors implementing
// RetryableError decide for themselves; everything else is retried.
func IsRetryable(err error) bool {
	var re RetryableError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}
	return true
}

// Do executes fn with exponential backoff until it succeeds, the retry
// budget is spent, the error is declared non-retryable, or ctx is done.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-time.After(applyJitter(delay, cfg.JitterFactor)):
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// applyJitter spreads delays so restarting replicas do not hammer the
// endpoint in lockstep.
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}
