package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestInMemoryBusPublishReachesSubscribers(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var calls int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, event Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		}))
	}

	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 handler calls, got %d", got)
	}
}

func TestInMemoryBusPublishSurvivesCancelledContext(t *testing.T) {
	bus := NewInMemoryBus(nil)
	done := make(chan error, 1)
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, event Event) error {
		done <- ctx.Err()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pingEvent{})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected detached context, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func TestInMemoryBusPublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(nil)
	boom := errors.New("boom")
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, event Event) error { return boom }))
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, event Event) error { return nil }))

	err := bus.PublishSync(context.Background(), pingEvent{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain boom, got %v", err)
	}
}

func TestInMemoryBusHandlerPanicIsContained(t *testing.T) {
	bus := NewInMemoryBus(nil)
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, event Event) error { panic("nope") }))

	bus.Publish(context.Background(), pingEvent{})
	bus.Wait()
}
