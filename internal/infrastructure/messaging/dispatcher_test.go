package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/lineage/internal/domain/shared"
	"github.com/alem-hub/lineage/pkg/retry"
)

func quickDispatcher(dlq int) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		Retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(time.Millisecond),
			retry.WithMaxDelay(time.Millisecond),
		),
		DeadLetterQueueSize: dlq,
		Logger:              quietLogger(),
	})
}

func TestDispatcher_RoutesByTypeThenAll(t *testing.T) {
	d := quickDispatcher(4)
	bus := syncBus()
	require.NoError(t, d.Attach(bus))

	var got []string
	require.NoError(t, d.Register(shared.EventApprenticeGraduated, "typed", func(e shared.Event) error {
		got = append(got, "typed:"+string(e.EventType()))
		return nil
	}))
	require.NoError(t, d.Register("", "all", func(e shared.Event) error {
		got = append(got, "all:"+string(e.EventType()))
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewApprenticeGraduatedEvent("m-1", "Kest", "Ayla", "Adept")))
	require.NoError(t, bus.Publish(shared.NewApprenticeAssignedEvent("m-1", "Kest", "Ayla")))

	assert.Equal(t, []string{
		"typed:mentorship.apprentice_graduated",
		"all:mentorship.apprentice_graduated",
		"all:mentorship.apprentice_assigned",
	}, got)
	assert.EqualValues(t, 2, d.Metrics().Snapshot().Dispatched)
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	d := quickDispatcher(4)

	calls := 0
	require.NoError(t, d.Register("", "flaky", func(shared.Event) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	}))

	require.NoError(t, d.Dispatch(shared.NewApprenticeAssignedEvent("m-1", "Kest", "Ayla")))
	assert.Equal(t, 3, calls)
	assert.EqualValues(t, 1, d.Metrics().Snapshot().RetrySuccess)
	assert.Zero(t, d.DeadLetterQueue().Size())
}

func TestDispatcher_DeadLettersAfterRetries(t *testing.T) {
	d := quickDispatcher(1)
	boom := errors.New("store down")
	require.NoError(t, d.Register("", "store", func(shared.Event) error { return boom }))

	err := d.Dispatch(shared.NewApprenticeAssignedEvent("m-1", "Kest", "Ayla"))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "handler store failed after 3 attempt(s)")

	require.Error(t, d.Dispatch(shared.NewApprenticeAssignedEvent("m-2", "Orin", "Kest")))

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 1, "oldest entry is dropped when full")
	assert.Equal(t, "m-2", entries[0].Event.AggregateID())
	assert.Equal(t, 3, entries[0].Attempts)
	assert.EqualValues(t, 2, d.Metrics().Snapshot().Failed)
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Logger: quietLogger()})
	d.Use(RecoveryMiddleware(quietLogger()))
	d.Use(LoggingMiddleware(quietLogger()))

	require.NoError(t, d.Register("", "panicky", func(shared.Event) error { panic("bad payload") }))

	err := d.Dispatch(shared.NewApprenticeAssignedEvent("m-1", "Kest", "Ayla"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic: bad payload")
	assert.Nil(t, d.DeadLetterQueue())
}

func TestDispatcher_RejectsBadRegistrations(t *testing.T) {
	d := quickDispatcher(0)
	assert.ErrorIs(t, d.Register("", "nil", nil), ErrNilHandler)
	assert.Error(t, d.Register("", "", func(shared.Event) error { return nil }))
	assert.NoError(t, d.Dispatch(shared.NewApprenticeAssignedEvent("m-1", "Kest", "Ayla")))
}
