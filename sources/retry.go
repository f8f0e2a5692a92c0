package sources

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryConfig controls the per-adapter retry loop.
type RetryConfig struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // first backoff step
	Factor     float64       // backoff multiplier
}

// DefaultRetry is the standard adapter retry policy: one retry after a
// one-second backoff, doubling, with jitter.
var DefaultRetry = RetryConfig{MaxRetries: 1, BaseDelay: time.Second, Factor: 2}

// FetchWithRetry calls the adapter, retrying transient upstream failures
// with exponential backoff plus jitter. It returns the number of attempts
// made so the fetcher can report a total across the cascade.
func FetchWithRetry(ctx context.Context, src Source, spec Spec, cfg RetryConfig) (*Result, int, error) {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Factor < 1 {
		cfg.Factor = 2
	}

	attempts := 0
	delay := cfg.BaseDelay
	var lastErr error

	for try := 0; try <= cfg.MaxRetries; try++ {
		if try > 0 {
			jitter := time.Duration(rand.Int63n(int64(delay) / 2))
			select {
			case <-time.After(delay + jitter):
			case <-ctx.Done():
				return nil, attempts, ctx.Err()
			}
			delay = time.Duration(float64(delay) * cfg.Factor)
		}

		attempts++
		result, err := src.Fetch(ctx, spec)
		if err == nil {
			return result, attempts, nil
		}
		lastErr = err
		if !errors.Is(err, ErrTransient) {
			break
		}
	}
	return nil, attempts, lastErr
}
