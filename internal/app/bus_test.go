package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/session"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	b, cancelB := bus.Subscribe(4)
	defer cancelA()
	defer cancelB()

	bus.Publish(Event{Type: StateChanged, State: session.State{IsActive: true}})

	for _, ch := range []<-chan Event{a, b} {
		e := <-ch
		assert.Equal(t, StateChanged, e.Type)
		assert.True(t, e.State.IsActive)
	}
}

func TestBusDropsOldestWhenFull(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(2)
	defer cancel()

	for i := 1; i <= 5; i++ {
		bus.Publish(Event{Type: StateChanged, State: session.State{Countdown: i}})
	}

	first := <-ch
	second := <-ch
	assert.Equal(t, 4, first.State.Countdown)
	assert.Equal(t, 5, second.State.Countdown)
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	bus.Publish(Event{Type: ConfigChanged})
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	bus.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := bus.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
}

func TestEventPayload(t *testing.T) {
	cfg := config.AppConfig{DurationMinutes: 30}
	e := Event{Type: ConfigChanged, Config: cfg}
	require.IsType(t, config.AppConfig{}, e.Payload())
	assert.Equal(t, cfg, e.Payload())

	e = Event{Type: StateChanged}
	assert.IsType(t, session.State{}, e.Payload())
}
