package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alem-hub/lineage/internal/domain/shared"
	"github.com/alem-hub/lineage/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher routes events from a bus to named handlers. Each handler runs
// through the middleware chain and is retried; events that still fail go to
// the dead letter queue. Handlers run on the publishing goroutine so a
// seeded run stays reproducible.
type Dispatcher struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]HandlerRegistration
	all         []HandlerRegistration
	middlewares []Middleware
	retrier     *retry.Retrier
	deadLetterQ *DeadLetterQueue
	logger      *slog.Logger
	metrics     *DispatcherMetrics
}

// HandlerRegistration contains handler metadata.
type HandlerRegistration struct {
	Name    string
	Handler shared.EventHandler

	// Timeout bounds one attempt (default: 5s).
	Timeout time.Duration
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	// Retrier retries failed handlers. Nil means a single attempt.
	Retrier *retry.Retrier

	// DeadLetterQueueSize is the max size of the DLQ; 0 disables it.
	DeadLetterQueueSize int

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultDispatcherConfig returns the defaults: three quick attempts and a
// small dead letter queue.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(20*time.Millisecond),
			retry.WithMaxDelay(500*time.Millisecond),
		),
		DeadLetterQueueSize: 256,
	}
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	d := &Dispatcher{
		handlers: make(map[shared.EventType][]HandlerRegistration),
		retrier:  config.Retrier,
		logger:   config.Logger,
		metrics:  NewDispatcherMetrics(),
	}
	if config.DeadLetterQueueSize > 0 {
		d.deadLetterQ = NewDeadLetterQueue(config.DeadLetterQueueSize)
	}
	return d
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// RegisterHandler registers a handler for an event type. An empty event
// type registers it for every event.
func (d *Dispatcher) RegisterHandler(eventType shared.EventType, reg HandlerRegistration) error {
	if reg.Handler == nil {
		return ErrNilHandler
	}
	if reg.Name == "" {
		return errors.New("handler name is required")
	}
	if reg.Timeout <= 0 {
		reg.Timeout = 5 * time.Second
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if eventType == "" {
		d.all = append(d.all, reg)
	} else {
		d.handlers[eventType] = append(d.handlers[eventType], reg)
	}
	d.logger.Debug("registered handler", "event_type", eventType, "handler_name", reg.Name)
	return nil
}

// Register is a convenience method for simple handler registration.
func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	return d.RegisterHandler(eventType, HandlerRegistration{Name: name, Handler: handler})
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// Use adds middleware to the dispatcher. The first added runs outermost.
func (d *Dispatcher) Use(middleware Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware)
}

// RecoveryMiddleware turns handler panics into errors.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panic recovered",
						"event_type", event.EventType(),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs handler execution.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			if err != nil {
				logger.Warn("handler failed",
					"event_type", event.EventType(),
					"aggregate_id", event.AggregateID(),
					"duration", time.Since(start),
					"error", err,
				)
			} else {
				logger.Debug("handler completed",
					"event_type", event.EventType(),
					"duration", time.Since(start),
				)
			}
			return err
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT DISPATCHING
// ══════════════════════════════════════════════════════════════════════════════

// Attach subscribes the dispatcher to every event on bus.
func (d *Dispatcher) Attach(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(d.Dispatch)
}

// Dispatch runs every handler registered for the event. Failures are
// collected and joined; one failing handler does not skip the others.
func (d *Dispatcher) Dispatch(event shared.Event) error {
	d.mu.RLock()
	regs := make([]HandlerRegistration, 0, len(d.all)+len(d.handlers[event.EventType()]))
	regs = append(regs, d.handlers[event.EventType()]...)
	regs = append(regs, d.all...)
	middlewares := d.middlewares
	d.mu.RUnlock()

	if len(regs) == 0 {
		return nil
	}
	d.metrics.RecordDispatch()

	var errs []error
	for _, reg := range regs {
		if err := d.execute(event, reg, middlewares); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) execute(event shared.Event, reg HandlerRegistration, middlewares []Middleware) error {
	handler := reg.Handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	attempts := 0
	attempt := func(ctx context.Context) error {
		attempts++
		ctx, cancel := context.WithTimeout(ctx, reg.Timeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- handler(event) }()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return fmt.Errorf("handler timeout after %v", reg.Timeout)
		}
	}

	var err error
	if d.retrier != nil {
		err = d.retrier.Do(context.Background(), attempt)
	} else {
		err = attempt(context.Background())
	}
	if err == nil {
		if attempts > 1 {
			d.metrics.RecordRetrySuccess()
		}
		return nil
	}

	if d.deadLetterQ != nil {
		d.deadLetterQ.Add(DeadLetterEntry{
			Event:       event,
			HandlerName: reg.Name,
			Error:       err,
			Attempts:    attempts,
			FailedAt:    time.Now(),
		})
	}
	d.metrics.RecordFailure()
	return fmt.Errorf("handler %s failed after %d attempt(s): %w", reg.Name, attempts, err)
}

// Metrics returns dispatcher metrics.
func (d *Dispatcher) Metrics() *DispatcherMetrics {
	return d.metrics
}

// DeadLetterQueue returns the dead letter queue, or nil when disabled.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.deadLetterQ
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry is an event a handler could not process.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	Attempts    int
	FailedAt    time.Time
}

// DeadLetterQueue keeps the most recent failures; the oldest entry is
// dropped when full.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a queue holding at most maxSize entries.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	return &DeadLetterQueue{
		entries: make([]DeadLetterEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of all entries.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Size returns the number of entries.
func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// DispatcherMetrics counts dispatches and their outcomes.
type DispatcherMetrics struct {
	mu           sync.Mutex
	dispatched   int64
	failed       int64
	retrySuccess int64
}

// NewDispatcherMetrics creates zeroed metrics.
func NewDispatcherMetrics() *DispatcherMetrics {
	return &DispatcherMetrics{}
}

func (m *DispatcherMetrics) RecordDispatch() {
	m.mu.Lock()
	m.dispatched++
	m.mu.Unlock()
}

func (m *DispatcherMetrics) RecordFailure() {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

func (m *DispatcherMetrics) RecordRetrySuccess() {
	m.mu.Lock()
	m.retrySuccess++
	m.mu.Unlock()
}

// DispatcherMetricsSnapshot is a point-in-time copy of the metrics.
type DispatcherMetricsSnapshot struct {
	Dispatched   int64
	Failed       int64
	RetrySuccess int64
}

// Snapshot returns the current counters.
func (m *DispatcherMetrics) Snapshot() DispatcherMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return DispatcherMetricsSnapshot{
		Dispatched:   m.dispatched,
		Failed:       m.failed,
		RetrySuccess: m.retrySuccess,
	}
}
