package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/providers"
)

func bookedPayload(t *testing.T, id string) string {
	t.Helper()
	data, err := json.Marshal(&entities.BookingEvent{
		ID:            id,
		EventType:     entities.BookingEventBooked,
		AppointmentID: "appt-1",
		OpNumber:      "OP00001",
		State:         entities.AppointmentStateBooked,
	})
	require.NoError(t, err)
	return string(data)
}

func TestRedisEventBus_DispatchFansOut(t *testing.T) {
	bus := newRedisEventBus(nil)
	bus.mu.Lock()
	first := bus.addSubscriber(providers.EventChannelBookings)
	second := bus.addSubscriber(providers.EventChannelBookings)
	other := bus.addSubscriber(providers.DepartmentChannel(entities.DepartmentIP))
	bus.mu.Unlock()

	bus.dispatch(providers.EventChannelBookings, bookedPayload(t, "evt-1"))

	for _, ch := range []chan *entities.BookingEvent{first, second} {
		select {
		case event := <-ch:
			assert.Equal(t, "evt-1", event.ID)
			assert.Equal(t, "OP00001", event.OpNumber)
		default:
			t.Fatal("expected an event")
		}
	}
	assert.Len(t, other, 0)
}

func TestRedisEventBus_DispatchSkipsFullSubscriber(t *testing.T) {
	bus := newRedisEventBus(nil)
	bus.mu.Lock()
	ch := bus.addSubscriber(providers.EventChannelBookings)
	bus.mu.Unlock()

	for i := 0; i < subscriberBuffer+5; i++ {
		bus.dispatch(providers.EventChannelBookings, bookedPayload(t, "evt"))
	}

	assert.Len(t, ch, subscriberBuffer)
}

func TestRedisEventBus_DispatchIgnoresGarbage(t *testing.T) {
	bus := newRedisEventBus(nil)
	bus.mu.Lock()
	ch := bus.addSubscriber(providers.EventChannelBookings)
	bus.mu.Unlock()

	bus.dispatch(providers.EventChannelBookings, "not json")

	assert.Len(t, ch, 0)
}

func TestRedisEventBus_RemoveSubscriberClosesChannel(t *testing.T) {
	bus := newRedisEventBus(nil)
	bus.mu.Lock()
	ch := bus.addSubscriber(providers.EventChannelBookings)
	bus.mu.Unlock()

	bus.removeSubscriber(providers.EventChannelBookings, ch)

	_, open := <-ch
	assert.False(t, open)
	assert.NotContains(t, bus.subscribers, providers.EventChannelBookings)
}

// offlinePubSub returns a subscription that never dials Redis
func offlinePubSub(t *testing.T) *redis.PubSub {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	return client.Subscribe(context.Background())
}

func TestRedisEventBus_StaleReleaseKeepsNewSubscription(t *testing.T) {
	bus := newRedisEventBus(nil)
	channel := providers.EventChannelBookings

	first := offlinePubSub(t)
	bus.mu.Lock()
	bus.subscriptions[channel] = first
	old := bus.addSubscriber(channel)
	bus.mu.Unlock()

	// last subscriber leaves, then a new client joins before the old
	// receive loop has exited
	bus.removeSubscriber(channel, old)

	second := offlinePubSub(t)
	bus.mu.Lock()
	bus.subscriptions[channel] = second
	fresh := bus.addSubscriber(channel)
	bus.mu.Unlock()

	require.NoError(t, bus.releaseSubscription(channel, first))

	bus.mu.RLock()
	assert.Same(t, second, bus.subscriptions[channel])
	assert.Contains(t, bus.subscribers[channel], fresh)
	bus.mu.RUnlock()

	bus.dispatch(channel, bookedPayload(t, "evt-2"))
	select {
	case event, ok := <-fresh:
		require.True(t, ok, "subscriber channel was closed")
		assert.Equal(t, "evt-2", event.ID)
	default:
		t.Fatal("expected an event")
	}
}

func TestRedisEventBus_ReleaseCurrentSubscriptionClosesSubscribers(t *testing.T) {
	bus := newRedisEventBus(nil)
	channel := providers.DepartmentChannel(entities.DepartmentIP)

	pubsub := offlinePubSub(t)
	bus.mu.Lock()
	bus.subscriptions[channel] = pubsub
	ch := bus.addSubscriber(channel)
	bus.mu.Unlock()

	require.NoError(t, bus.releaseSubscription(channel, pubsub))

	_, open := <-ch
	assert.False(t, open)
	assert.NotContains(t, bus.subscriptions, channel)
	assert.NotContains(t, bus.subscribers, channel)
}

func TestRedisEventBus_CloseReleasesSubscriptions(t *testing.T) {
	bus := newRedisEventBus(nil)
	channel := providers.EventChannelBookings

	bus.mu.Lock()
	bus.subscriptions[channel] = offlinePubSub(t)
	ch := bus.addSubscriber(channel)
	bus.mu.Unlock()

	require.NoError(t, bus.Close())

	_, open := <-ch
	assert.False(t, open)
	assert.Empty(t, bus.subscriptions)

	_, err := bus.Subscribe(context.Background(), channel)
	assert.Error(t, err)
}
