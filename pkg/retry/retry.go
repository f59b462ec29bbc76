// Package retry retries transcript and event-store writes with capped
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// PermanentError stops retrying at once.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth another attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

type policy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	jitter       float64
	retryIf      func(error) bool
	onRetry      func(attempt int, err error, delay time.Duration)
}

// Option tunes a Retrier.
type Option func(*policy)

// WithMaxAttempts counts the first attempt too.
func WithMaxAttempts(n int) Option {
	return func(p *policy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithInitialDelay(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.initialDelay = d
		}
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// WithJitter spreads each delay by up to ±j of itself.
func WithJitter(j float64) Option {
	return func(p *policy) {
		if j >= 0 && j <= 1 {
			p.jitter = j
		}
	}
}

// WithRetryIf replaces the default filter, which retries everything except
// permanent errors and context cancellation.
func WithRetryIf(fn func(error) bool) Option {
	return func(p *policy) { p.retryIf = fn }
}

// WithOnRetry is called before each wait.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *policy) { p.onRetry = fn }
}

// Retrier runs an operation until it succeeds or the attempts run out.
type Retrier struct {
	p policy
}

// New builds a Retrier. Defaults: 3 attempts, 100ms doubling up to 5s, 10% jitter.
func New(opts ...Option) *Retrier {
	p := policy{
		maxAttempts:  3,
		initialDelay: 100 * time.Millisecond,
		maxDelay:     5 * time.Second,
		jitter:       0.1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &Retrier{p: p}
}

func (r *Retrier) shouldRetry(err error) bool {
	if IsPermanent(err) {
		return false
	}
	if r.p.retryIf != nil {
		return r.p.retryIf(err)
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do calls op until it returns nil. The last error is returned with any
// Permanent wrapper removed.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	delay := r.p.initialDelay
	var err error

	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		if err = op(ctx); err == nil {
			return nil
		}
		if p := (*PermanentError)(nil); errors.As(err, &p) {
			return p.Err
		}
		if attempt >= r.p.maxAttempts || !r.shouldRetry(err) {
			return err
		}

		wait := r.spread(delay)
		if r.p.onRetry != nil {
			r.p.onRetry(attempt, err, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}

		if delay *= 2; delay > r.p.maxDelay {
			delay = r.p.maxDelay
		}
	}
}

func (r *Retrier) spread(d time.Duration) time.Duration {
	if r.p.jitter == 0 {
		return d
	}
	f := float64(d) * (1 + r.p.jitter*(rand.Float64()*2-1))
	if f < 0 {
		return 0
	}
	return time.Duration(f)
}

// RedisRetrier is the preset for Redis writes: local and fast, so waits are short.
func RedisRetrier(onRetry func(attempt int, err error, delay time.Duration)) *Retrier {
	return New(
		WithInitialDelay(20*time.Millisecond),
		WithMaxDelay(250*time.Millisecond),
		WithOnRetry(onRetry),
	)
}

// DatabaseRetrier is the preset for PostgreSQL writes.
func DatabaseRetrier(onRetry func(attempt int, err error, delay time.Duration)) *Retrier {
	return New(
		WithInitialDelay(50*time.Millisecond),
		WithMaxDelay(time.Second),
		WithJitter(0.05),
		WithOnRetry(onRetry),
	)
}
