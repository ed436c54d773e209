// Package events is the in-process publish/subscribe bus that carries
// lifecycle events from the engine that committed a change to the modules
// reacting to it.
// This is part of the platform layer and contains no business logic.
package events

import (
	"context"
	"time"
)

// Event is a named fact about a committed change.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent stamps an event with the moment it was raised.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent returns a BaseEvent stamped now, in UTC.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

// Handler reacts to one event. Errors are logged by the bus and never
// reach the publisher of an async event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error { return f(ctx, event) }

// Bus routes events to the handlers subscribed to their name.
type Bus interface {
	// Publish runs the handlers in the background, detached from ctx
	// cancellation.
	Publish(ctx context.Context, event Event)

	// PublishSync runs the handlers inline and joins their errors.
	PublishSync(ctx context.Context, event Event) error

	Subscribe(eventName string, handler Handler)
}
