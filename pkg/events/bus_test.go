package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus(nil)
	var order []string
	bus.Subscribe(DataReady, "a", func(Event) { order = append(order, "a") })
	bus.Subscribe(DataReady, "b", func(Event) { order = append(order, "b") })
	bus.Subscribe(ErrorOccurred, "c", func(Event) { order = append(order, "c") })

	ev := bus.Publish(DataReady, map[string]interface{}{"n": 1}, "test")

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, DataReady, ev.Type)
	assert.Equal(t, "test", ev.Source)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestPanickingSubscriberDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(nil)
	delivered := false
	bus.Subscribe(DataReady, "bad", func(Event) { panic("boom") })
	bus.Subscribe(DataReady, "good", func(Event) { delivered = true })

	require.NotPanics(t, func() {
		bus.Publish(DataReady, nil, "test")
	})
	assert.True(t, delivered, "subscriber after the panicking one must still run")
}

func TestSubscriberMayPublishReentrantly(t *testing.T) {
	bus := NewBus(nil)
	var chained []Type
	bus.Subscribe(DataReady, "chain", func(Event) {
		bus.Publish(JobStatusChanged, nil, "chain")
	})
	bus.Subscribe(JobStatusChanged, "sink", func(ev Event) {
		chained = append(chained, ev.Type)
	})

	// Must not deadlock: the bus lock is not held during callbacks.
	bus.Publish(DataReady, nil, "test")
	assert.Equal(t, []Type{JobStatusChanged}, chained)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	id := bus.Subscribe(DataReady, "a", func(Event) { calls++ })

	assert.True(t, bus.Unsubscribe(id))
	assert.False(t, bus.Unsubscribe(id), "second removal of the same id must report false")

	bus.Publish(DataReady, nil, "test")
	assert.Zero(t, calls)
}

func TestUnsubscribeAll(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(DataReady, "widget", func(Event) {})
	bus.Subscribe(ErrorOccurred, "widget", func(Event) {})
	bus.Subscribe(DataReady, "other", func(Event) {})

	assert.Equal(t, 2, bus.UnsubscribeAll("widget"))
	assert.Equal(t, 0, bus.UnsubscribeAll("widget"))
	assert.Equal(t, 1, bus.SubscriberCount(DataReady))
}

func TestHistoryIsBounded(t *testing.T) {
	bus := NewBus(nil)
	for i := 0; i < historyCapacity+25; i++ {
		bus.Publish(DataReady, map[string]interface{}{"seq": i}, "test")
	}

	all := bus.History("", 0)
	require.Len(t, all, historyCapacity)
	// The oldest 25 must have been dropped.
	assert.Equal(t, 25, all[0].Payload["seq"])
	assert.Equal(t, historyCapacity+24, all[len(all)-1].Payload["seq"])
}

func TestHistoryFilterAndLimit(t *testing.T) {
	bus := NewBus(nil)
	for i := 0; i < 5; i++ {
		bus.Publish(DataReady, map[string]interface{}{"seq": i}, "test")
	}
	bus.Publish(ErrorOccurred, map[string]interface{}{"error": "x"}, "test")

	assert.Len(t, bus.History(DataReady, 0), 5)
	assert.Len(t, bus.History(ErrorOccurred, 0), 1)

	last2 := bus.History(DataReady, 2)
	require.Len(t, last2, 2)
	assert.Equal(t, 3, last2[0].Payload["seq"])
	assert.Equal(t, 4, last2[1].Payload["seq"])

	bus.ClearHistory()
	assert.Empty(t, bus.History("", 0))
}

func TestDisabledBusDropsEvents(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	bus.Subscribe(DataReady, "a", func(Event) { calls++ })

	bus.SetDisabled(true)
	bus.Publish(DataReady, nil, "test")
	assert.Zero(t, calls)
	assert.Empty(t, bus.History("", 0))

	bus.SetDisabled(false)
	bus.Publish(DataReady, nil, "test")
	assert.Equal(t, 1, calls, "subscriptions survive a disable/enable cycle")
}

func TestEventIDsAreUnique(t *testing.T) {
	bus := NewBus(nil)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ev := bus.Publish(DataReady, nil, fmt.Sprintf("src-%d", i))
		require.False(t, seen[ev.ID], "duplicate event id %s", ev.ID)
		seen[ev.ID] = true
	}
}
