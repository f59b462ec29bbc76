package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/lineage/internal/domain/shared"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func syncBus() *InMemoryEventBus {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.Logger = quietLogger()
	return NewInMemoryEventBus(cfg)
}

func TestInMemoryEventBus_DeliversInOrder(t *testing.T) {
	bus := syncBus()

	var got []string
	require.NoError(t, bus.Subscribe(shared.EventPractitionerPromoted, func(e shared.Event) error {
		got = append(got, "typed:"+e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		got = append(got, "all:"+string(e.EventType()))
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewPractitionerPromotedEvent("p-1", "Ayla", "Apprentice", "Adept")))
	require.NoError(t, bus.Publish(shared.NewApprenticeAssignedEvent("p-1", "Ayla", "Bren")))

	assert.Equal(t, []string{
		"typed:p-1",
		"all:mentorship.promoted",
		"all:mentorship.apprentice_assigned",
	}, got)

	snap := bus.Metrics().Snapshot()
	assert.EqualValues(t, 2, snap.TotalPublished)
	assert.EqualValues(t, 3, snap.TotalHandlerExecs)
	assert.EqualValues(t, 1, bus.Metrics().Published(shared.EventApprenticeAssigned))
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := syncBus()

	calls := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("worse") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		calls++
		return nil
	}))

	err := bus.Publish(shared.NewRuleDeclinedEvent("p-1", "Ayla", "Promote", "not eligible"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	snap := bus.Metrics().Snapshot()
	assert.EqualValues(t, 2, snap.HandlerFailures)
}

func TestInMemoryEventBus_Validation(t *testing.T) {
	bus := syncBus()

	assert.ErrorIs(t, bus.Subscribe(shared.EventRuleDeclined, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(shared.NewRuleDeclinedEvent("p", "n", "op", "r")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

type fakeRedis struct {
	mu       sync.Mutex
	channels []string
	messages []string
	err      error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message.(string))
	cmd.SetVal(1)
	return cmd
}

func TestRedisEventBus_PublishesEnvelope(t *testing.T) {
	client := &fakeRedis{}
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client: client,
		RunID:  "run-7",
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	delivered := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		delivered++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewApprenticeGraduatedEvent("m-1", "Ayla", "Bren", "Adept")))

	require.Len(t, client.messages, 1)
	assert.Equal(t, "lineage:events", client.channels[0])

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(client.messages[0]), &env))
	assert.Equal(t, "run-7", env.RunID)
	assert.Equal(t, shared.EventApprenticeGraduated, env.EventType)
	assert.Equal(t, "m-1", env.AggregateID)
	assert.Equal(t, "Bren", env.Payload["apprentice"])
	assert.Equal(t, 1, delivered)
}

func TestRedisEventBus_RedisFailureStillDeliversLocally(t *testing.T) {
	client := &fakeRedis{err: errors.New("connection refused")}
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: client, Logger: quietLogger()})
	require.NoError(t, err)

	delivered := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		delivered++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRuleDeclinedEvent("p", "Ayla", "Assign", "rank")))
	assert.Equal(t, 1, delivered)
	assert.Empty(t, client.messages)
}

func TestNewRedisEventBus_RequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}
