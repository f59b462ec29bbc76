// Package circuitbreaker keeps a failing transcript store from stalling a
// run: after enough consecutive failures writes are refused outright until a
// cool-down passes, then a single probe decides whether the store is back.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrCircuitOpen is returned while the cool-down is running.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned while the half-open probe is in flight.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type settings struct {
	failureThreshold int
	successThreshold int
	coolDown         time.Duration
	onStateChange    func(name string, from, to State)
	isFailure        func(error) bool
	now              func() time.Time
}

// Option tunes a breaker.
type Option func(*settings)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many half-open successes close it again.
func WithSuccessThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.successThreshold = n
		}
	}
}

// WithTimeout sets the cool-down spent open before probing.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.coolDown = d
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *settings) { s.onStateChange = fn }
}

// WithIsFailure filters which errors count against the store.
func WithIsFailure(fn func(error) bool) Option {
	return func(s *settings) { s.isFailure = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// CircuitBreaker guards calls to one store.
type CircuitBreaker struct {
	name string
	cfg  settings

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

// New builds a closed breaker. Defaults: 5 failures to open, 30s cool-down,
// 2 successes to close.
func New(name string, opts ...Option) *CircuitBreaker {
	cfg := settings{
		failureThreshold: 5,
		successThreshold: 2,
		coolDown:         30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CircuitBreaker{name: name, cfg: cfg}
}

// StoreBreaker is the preset for transcript stores. Runs are short, so the
// cool-down is short too.
func StoreBreaker(name string, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(name,
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(5*time.Second),
		WithOnStateChange(onStateChange),
	)
}

// Execute calls fn unless the circuit refuses it, and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.cfg.now().Sub(cb.openedAt) < cb.cfg.coolDown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			return ErrTooManyRequests
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	failed := err != nil && (cb.cfg.isFailure == nil || cb.cfg.isFailure(err))

	if !failed {
		cb.failures = 0
		cb.successes++
		if cb.state == StateHalfOpen && cb.successes >= cb.cfg.successThreshold {
			cb.transition(StateClosed)
		}
		return
	}

	cb.successes = 0
	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.cfg.failureThreshold {
		cb.openedAt = cb.cfg.now()
		cb.transition(StateOpen)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.failures, cb.successes = 0, 0
	if cb.cfg.onStateChange != nil {
		cb.cfg.onStateChange(cb.name, from, to)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) IsOpen() bool { return cb.State() == StateOpen }

func (cb *CircuitBreaker) IsClosed() bool { return cb.State() == StateClosed }
