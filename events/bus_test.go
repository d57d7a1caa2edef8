package events_test

import (
	"testing"

	"github.com/jrsteele09/go-session-client/events"
	"github.com/stretchr/testify/require"
)

func TestBus_TokenUpdatedOrder(t *testing.T) {
	bus := events.NewBus()

	var calls []string
	bus.OnTokenUpdated(func(e events.TokenUpdated) { calls = append(calls, "first:"+e.Token) })
	bus.OnTokenUpdated(func(e events.TokenUpdated) { calls = append(calls, "second:"+e.Token) })

	bus.PublishTokenUpdated(events.TokenUpdated{Token: "t1"})

	require.Equal(t, []string{"first:t1", "second:t1"}, calls)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := events.NewBus()

	cleared := 0
	unsubscribe := bus.OnSessionCleared(func(events.SessionCleared) { cleared++ })

	bus.PublishSessionCleared()
	unsubscribe()
	bus.PublishSessionCleared()
	unsubscribe()

	require.Equal(t, 1, cleared)
}

func TestBus_ListenerMaySubscribeDuringPublish(t *testing.T) {
	var bus events.Bus

	late := 0
	bus.OnSessionCleared(func(events.SessionCleared) {
		bus.OnSessionCleared(func(events.SessionCleared) { late++ })
	})

	require.NotPanics(t, bus.PublishSessionCleared)
	require.Equal(t, 0, late)

	bus.PublishSessionCleared()
	require.Equal(t, 1, late)
}

func TestBus_NoListeners(t *testing.T) {
	bus := events.NewBus()
	require.NotPanics(t, func() {
		bus.PublishTokenUpdated(events.TokenUpdated{Token: "x"})
		bus.PublishSessionCleared()
	})
}
