// Package eventbus provides the event-driven communication layer between the
// workflow engine and its asynchronous consumers.
package eventbus

import (
	"context"
	"errors"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/events"
)

// ErrUntypedEvent indicates a value without an event type reached the bus.
var ErrUntypedEvent = errors.New("event does not implement the Event contract")

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// EnginePublisher bridges the engine's publisher port to the bus. The engine
// publishes plain event values keyed by tenant; the bus requires the typed
// Event contract, so a value without a type is refused here instead of
// failing deep inside the transport.
type EnginePublisher struct {
	bus EventBus
}

func NewEnginePublisher(bus EventBus) *EnginePublisher {
	return &EnginePublisher{bus: bus}
}

func (p *EnginePublisher) Publish(ctx context.Context, tenantID string, event any) error {
	typed, ok := event.(Event)
	if !ok {
		return ErrUntypedEvent
	}

	return p.bus.Publish(ctx, tenantID, typed)
}
