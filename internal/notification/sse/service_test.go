package sse

import (
	"testing"

	"marketplace_backend/platform/logger"
)

func TestPublishReachesEveryStreamOfTheUser(t *testing.T) {
	s := New(logger.Nop())
	first := &client{userID: "cust-1", events: make(chan Event, clientBuffer)}
	second := &client{userID: "cust-1", events: make(chan Event, clientBuffer)}
	other := &client{userID: "pro-a", events: make(chan Event, clientBuffer)}
	s.addClient(first)
	s.addClient(second)
	s.addClient(other)

	s.Publish("cust-1", Event{Type: EventNotification, Message: "New quote received"})

	for _, c := range []*client{first, second} {
		select {
		case got := <-c.events:
			if got.Message != "New quote received" {
				t.Fatalf("unexpected event %+v", got)
			}
		default:
			t.Fatal("expected an event on every stream")
		}
	}
	if len(other.events) != 0 {
		t.Fatal("other users must not receive the event")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	s := New(logger.Nop())
	c := &client{userID: "cust-1", events: make(chan Event, 1)}
	s.addClient(c)

	s.Publish("cust-1", Event{Type: EventNotification, Message: "one"})
	s.Publish("cust-1", Event{Type: EventNotification, Message: "two"})

	if got := <-c.events; got.Message != "one" {
		t.Fatalf("expected the first event to be kept, got %+v", got)
	}
}

func TestRemoveClientClosesStream(t *testing.T) {
	s := New(logger.Nop())
	c := &client{userID: "cust-1", events: make(chan Event, clientBuffer)}
	s.addClient(c)
	s.removeClient(c)

	if s.Connected("cust-1") != 0 {
		t.Fatal("expected no open streams")
	}
	if _, ok := <-c.events; ok {
		t.Fatal("expected the stream channel to be closed")
	}
}
