package embedder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex/pkg/types"
)

func TestRetryWithBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		got, attempts, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, &types.ProviderError{Retryable: true, Err: errors.New("transient")}
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		calls := 0
		_, attempts, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, &types.ProviderError{StatusCode: 401, Err: errors.New("unauthorized")}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, attempts)
	})

	t.Run("bounded attempts", func(t *testing.T) {
		calls := 0
		_, attempts, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, &types.ProviderError{Retryable: true, Err: errors.New("transient")}
		})
		require.Error(t, err)
		assert.Equal(t, 4, calls)
		assert.Equal(t, 4, attempts)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		_, _, err := retryWithBackoff(ctx, cfg, func() (int, error) {
			cancel()
			return 0, &types.ProviderError{Retryable: true, Err: errors.New("transient")}
		})
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestRetryConfigDefaults(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()
	assert.Equal(t, DefaultRetryConfig(), cfg)

	cfg = RetryConfig{MaxRetries: 1}.withDefaults()
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, time.Duration(InitialBackoffMs)*time.Millisecond, cfg.BaseDelay)
}
