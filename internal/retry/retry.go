package retry

import (
	"context"
	"time"
)

// Config holds exponential backoff settings.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	// MaxDelay caps the backoff; zero leaves it uncapped.
	MaxDelay time.Duration
}

// IsRetryableFunc decides whether err should be retried. Nil retries everything.
type IsRetryableFunc func(error) bool

// OnRetryFunc is called before sleeping; attempt is 1 for the first retry.
type OnRetryFunc func(attempt int, err error, delay time.Duration)

// Do runs fn until it succeeds, returns a non-retryable error, or retries run out.
func Do(ctx context.Context, cfg Config, isRetryable IsRetryableFunc, onRetry OnRetryFunc, fn func(context.Context) error) error {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}

	delay := cfg.BaseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries || ctx.Err() != nil {
			return err
		}
		if isRetryable != nil && !isRetryable(err) {
			return err
		}
		if onRetry != nil {
			onRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// Value is Do for functions returning a value.
func Value[T any](ctx context.Context, cfg Config, isRetryable IsRetryableFunc, onRetry OnRetryFunc, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, cfg, isRetryable, onRetry, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
