// Package messaging carries domain events from the mentorship engine and the
// assembly to their listeners: an in-process bus, a Redis Pub/Sub fan-out
// on top of it, and a dispatcher that retries handlers.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/lineage/internal/domain/shared"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")
	ErrHandlerPanic   = errors.New("handler panicked")
	ErrNilHandler     = errors.New("handler cannot be nil")
	ErrNilEvent       = errors.New("event cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus delivers each event on the publishing goroutine: typed
// subscribers first, then catch-all ones, each group in subscription order.
// A seeded run therefore logs and stores events in the same order every time.
type InMemoryEventBus struct {
	mu      sync.RWMutex
	typed   map[shared.EventType][]shared.EventHandler
	all     []shared.EventHandler
	closed  bool
	logger  *slog.Logger
	metrics *EventBusMetrics
}

type InMemoryEventBusConfig struct {
	Logger *slog.Logger

	// EnableMetrics counts publishes and handler outcomes.
	EnableMetrics bool
}

func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{EnableMetrics: true}
}

func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	bus := &InMemoryEventBus{
		typed:  make(map[shared.EventType][]shared.EventHandler),
		logger: config.Logger,
	}
	if config.EnableMetrics {
		bus.metrics = NewEventBusMetrics()
	}
	return bus
}

func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.subscribe(eventType, handler)
}

func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.subscribe("", handler)
}

func (b *InMemoryEventBus) subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	if eventType == "" {
		b.all = append(b.all, handler)
	} else {
		b.typed[eventType] = append(b.typed[eventType], handler)
	}
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// Publish runs every matching handler. Handler errors and panics are logged
// and counted; they never reach the publisher.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := append(append([]shared.EventHandler(nil), b.typed[event.EventType()]...), b.all...)
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType())
	}

	for _, h := range handlers {
		if err := b.run(event, h); err != nil {
			b.logger.Error("handler error", "event_type", event.EventType(), "error", err)
		}
	}
	return nil
}

func (b *InMemoryEventBus) run(event shared.Event, handler shared.EventHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		if b.metrics != nil {
			b.metrics.RecordHandler(err == nil)
		}
	}()
	return handler(event)
}

// Close refuses further subscriptions and publishes. Closing twice is a no-op.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		b.logger.Debug("event bus closed")
	}
	return nil
}

// Metrics is nil unless the bus was built with EnableMetrics.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS FAN-OUT
// ══════════════════════════════════════════════════════════════════════════════

// RedisPublisher is the part of the go-redis client the fan-out needs.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisEventBus copies every event, wrapped in an Envelope, to a Redis
// channel before delivering it locally. Subscriptions stay local; outside
// observers read the channel.
type RedisEventBus struct {
	*InMemoryEventBus

	client  RedisPublisher
	channel string
	runID   string
	timeout time.Duration
	logger  *slog.Logger
}

type RedisEventBusConfig struct {
	Client RedisPublisher

	// ChannelName defaults to "lineage:events".
	ChannelName string

	// RunID tags every envelope.
	RunID string

	// Timeout bounds one Redis publish (default 2s).
	Timeout time.Duration

	LocalBusConfig InMemoryEventBusConfig
	Logger         *slog.Logger
}

func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = "lineage:events"
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.LocalBusConfig.Logger == nil {
		config.LocalBusConfig.Logger = config.Logger
	}

	return &RedisEventBus{
		InMemoryEventBus: NewInMemoryEventBus(config.LocalBusConfig),
		client:           config.Client,
		channel:          config.ChannelName,
		runID:            config.RunID,
		timeout:          config.Timeout,
		logger:           config.Logger,
	}, nil
}

// Publish sends to Redis, then locally. A Redis failure is only logged.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	data, err := json.Marshal(NewEnvelope(b.runID, event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, string(data)).Err(); err != nil {
		b.logger.Error("failed to publish to redis", "channel", b.channel, "error", err)
	}

	return b.InMemoryEventBus.Publish(event)
}

// Envelope is the wire form of a domain event on the Redis channel.
type Envelope struct {
	RunID       string                 `json:"run_id,omitempty"`
	EventType   shared.EventType       `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

func NewEnvelope(runID string, event shared.Event) Envelope {
	return Envelope{
		RunID:       runID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts publishes per event type and handler outcomes.
type EventBusMetrics struct {
	mu        sync.Mutex
	published map[shared.EventType]int64
	execs     int64
	failures  int64
}

func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{published: make(map[shared.EventType]int64)}
}

func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	m.published[eventType]++
	m.mu.Unlock()
}

func (m *EventBusMetrics) RecordHandler(ok bool) {
	m.mu.Lock()
	m.execs++
	if !ok {
		m.failures++
	}
	m.mu.Unlock()
}

// Published returns the count for one event type.
func (m *EventBusMetrics) Published(eventType shared.EventType) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[eventType]
}

// EventBusMetricsSnapshot is a copy of the counters.
type EventBusMetricsSnapshot struct {
	TotalPublished    int64
	TotalHandlerExecs int64
	HandlerFailures   int64
}

func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := EventBusMetricsSnapshot{TotalHandlerExecs: m.execs, HandlerFailures: m.failures}
	for _, n := range m.published {
		snap.TotalPublished += n
	}
	return snap
}
