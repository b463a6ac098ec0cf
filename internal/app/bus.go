package app

import (
	"sync"

	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/session"
)

// EventType names a broadcast.
type EventType string

const (
	ConfigChanged EventType = "config-changed"
	StateChanged  EventType = "state-changed"
)

// Event is one broadcast. Only the field matching Type is set.
type Event struct {
	Type   EventType
	Config config.AppConfig
	State  session.State
}

// Payload returns the value carried by the event.
func (e Event) Payload() any {
	if e.Type == ConfigChanged {
		return e.Config
	}
	return e.State
}

// Bus fans events out to any number of subscribers. Publishing never blocks:
// a subscriber that falls behind loses its oldest pending event.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel receiving every later event and a function
// that cancels the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers e to every subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
			continue
		default:
		}
		// Full: drop the oldest so the newest state always arrives.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- e:
		default:
		}
	}
}

// Close ends every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
