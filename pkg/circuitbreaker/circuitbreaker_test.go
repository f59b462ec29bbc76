package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func fail(context.Context) error { return errors.New("down") }
func ok(context.Context) error   { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clk := &clock{now: time.Unix(0, 0)}
	var transitions []string
	cb := StoreBreaker("redis", func(name string, from, to State) {
		transitions = append(transitions, name+":"+from.String()+"->"+to.String())
	})
	cb.cfg.now = clk.Now

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(context.Background(), fail))
	}
	assert.True(t, cb.IsOpen())
	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrCircuitOpen)

	clk.now = clk.now.Add(6 * time.Second)
	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.True(t, cb.IsClosed())

	assert.Equal(t, []string{
		"redis:closed->open",
		"redis:open->half-open",
		"redis:half-open->closed",
	}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clk := &clock{now: time.Unix(0, 0)}
	cb := New("pg", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clk.Now))

	assert.Error(t, cb.Execute(context.Background(), fail))
	require.Equal(t, StateOpen, cb.State())

	clk.now = clk.now.Add(2 * time.Second)
	assert.Error(t, cb.Execute(context.Background(), fail))
	assert.Equal(t, StateOpen, cb.State())

	clk.now = clk.now.Add(500 * time.Millisecond)
	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrCircuitOpen, "cool-down restarts on reopen")
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	clk := &clock{now: time.Unix(0, 0)}
	cb := New("pg", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clk.Now))
	_ = cb.Execute(context.Background(), fail)

	clk.now = clk.now.Add(2 * time.Second)
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		assert.ErrorIs(t, cb.Execute(ctx, ok), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State(), "two successes needed by default")

	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.True(t, cb.IsClosed())
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	ignored := errors.New("ignored")
	cb := New("x", WithFailureThreshold(1), WithIsFailure(func(err error) bool { return !errors.Is(err, ignored) }))

	assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return ignored }), ignored)
	assert.True(t, cb.IsClosed())
	assert.Equal(t, "x", cb.Name())
}
