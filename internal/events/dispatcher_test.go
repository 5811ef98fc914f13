package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []string
	d.Subscribe(EventTicketAssigned, func(_ context.Context, event Event) error {
		got = append(got, event.TicketID)
		return nil
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, event Event) error {
		t.Fatal("handler for another type should not fire")
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventTicketAssigned, TicketID: "ticket-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 || got[0] != "ticket-1" {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestDispatcherContinuesPastHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()

	var calls int
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		calls++
		return errors.New("boom")
	})
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		calls++
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventTicketStatusChanged}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d", calls)
	}
}
