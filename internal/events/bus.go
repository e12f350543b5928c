package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for in-process event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(PlayerStateEvent{...})
func (b *Bus) Publish(ev Event) {
	// The generic Publish needs the concrete type, hence the switch.
	switch e := ev.(type) {
	case PlayerStateEvent:
		event.Publish(b.dispatcher, e)
	case SinkWaitEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function; the handler's
// parameter type selects which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e PlayerStateEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(PlayerStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SinkWaitEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
