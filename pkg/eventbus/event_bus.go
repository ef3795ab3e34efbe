// Package eventbus provides event-driven communication for execution progress.
package eventbus

import (
	"context"

	"github.com/loomworks/loom/pkg/events"
)

// Event is anything the bus can carry. Concrete types live in pkg/events.
type Event interface {
	GetType() events.EventType
}

// EventPublisher emits events keyed by execution, so subscribers can
// partition ordered streams per run.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventHandler processes one deserialized event. Returning an error nacks
// the message on transports that support redelivery.
type EventHandler func(ctx context.Context, event any) error

// EventSubscriber registers handlers per event type, then consumes with
// Subscribe until the context ends. Handle must be called before
// Subscribe; later registrations are not picked up.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
