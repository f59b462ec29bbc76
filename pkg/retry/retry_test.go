package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(opts ...Option) *Retrier {
	base := []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}
	return New(append(base, opts...)...)
}

func TestRetrier_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := fast(WithMaxAttempts(3)).Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("busy")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetrier_StopsOnPermanent(t *testing.T) {
	cause := errors.New("bad schema")
	attempts := 0
	err := fast().Do(context.Background(), func(context.Context) error {
		attempts++
		return Permanent(cause)
	})

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, attempts)
}

func TestRetrier_RetryIfFilter(t *testing.T) {
	attempts := 0
	err := fast(WithRetryIf(func(error) bool { return false })).Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("plain")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetrier_CancellationIsNotRetried(t *testing.T) {
	attempts := 0
	err := fast().Do(context.Background(), func(context.Context) error {
		attempts++
		return context.Canceled
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetrier_ReturnsLastErrorAndReportsRetries(t *testing.T) {
	cause := errors.New("still busy")
	var retries []int
	err := fast(WithMaxAttempts(2), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retries = append(retries, attempt)
	})).Do(context.Background(), func(context.Context) error {
		return cause
	})

	assert.Equal(t, cause, err)
	assert.Equal(t, []int{1}, retries)
}

func TestRetrier_BackoffDoublesUpToMax(t *testing.T) {
	var delays []time.Duration
	r := New(
		WithMaxAttempts(4),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(3*time.Millisecond),
		WithJitter(0),
		WithOnRetry(func(_ int, _ error, d time.Duration) { delays = append(delays, d) }),
	)
	_ = r.Do(context.Background(), func(context.Context) error { return errors.New("down") })

	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, delays)
}

func TestRedisRetrier_RetriesPlainErrors(t *testing.T) {
	attempts := 0
	err := RedisRetrier(nil).Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("i/o timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetrier_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fast().Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
