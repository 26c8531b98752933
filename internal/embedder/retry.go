package embedder

import (
	"context"
	"time"

	"github.com/dshills/docindex/pkg/types"
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int           // Maximum number of attempts (including the first)
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries
	Multiplier float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns sensible defaults for API retry
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// retryWithBackoff executes fn with exponential backoff.
// Only transient provider errors are retried; anything else is returned at once.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, int, error) {
	var lastErr error
	var zero T
	backoff := config.BaseDelay

	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, attempt, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return zero, attempt, ctx.Err()
		}

		if !types.IsRetryable(err) {
			return zero, attempt, err
		}

		if attempt < config.MaxRetries {
			select {
			case <-ctx.Done():
				return zero, attempt, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return zero, config.MaxRetries, lastErr
}
