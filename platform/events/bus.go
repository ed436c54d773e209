package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"marketplace_backend/platform/logger"
)

// InMemoryBus dispatches events to handlers registered in this process.
// Publish runs handlers on their own goroutines; Wait blocks until every
// asynchronous dispatch started so far has returned.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
	inflight sync.WaitGroup
}

// NewInMemoryBus creates an empty bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	if log == nil {
		log = logger.Nop()
	}
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for eventName.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event asynchronously. Handler failures are logged.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	handlers := b.handlersFor(event.EventName())
	if len(handlers) == 0 {
		return
	}

	// detach from the request so cancellation does not drop side effects
	dispatchCtx := context.WithoutCancel(ctx)
	for _, h := range handlers {
		b.inflight.Add(1)
		go func(h Handler) {
			defer b.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event handler panicked", "event", event.EventName(), "panic", fmt.Sprint(r))
				}
			}()
			if err := h.Handle(dispatchCtx, event); err != nil {
				b.log.Warn("event handler failed", "event", event.EventName(), "error", err)
			}
		}(h)
	}
}

// PublishSync runs every handler in order and joins their errors.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, h := range b.handlersFor(event.EventName()) {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until all asynchronous handlers have finished.
func (b *InMemoryBus) Wait() {
	b.inflight.Wait()
}

func (b *InMemoryBus) handlersFor(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := b.handlers[name]
	out := make([]Handler, len(handlers))
	copy(out, handlers)
	return out
}
