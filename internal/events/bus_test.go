package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	received := make(chan Event, 1)
	bus.Subscribe(TypeSignal, func(e Event) { received <- e })

	bus.Publish(Event{Type: TypeSignal, Data: "payload"})

	select {
	case e := <-received:
		if e.Data != "payload" {
			t.Errorf("unexpected payload: %v", e.Data)
		}
		if e.Timestamp.IsZero() {
			t.Error("expected timestamp set on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestPublishFiltersByType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	received := make(chan Event, 2)
	bus.Subscribe(TypeOrder, func(e Event) { received <- e })

	bus.Publish(Event{Type: TypeSignal})
	bus.Publish(Event{Type: TypeOrder})

	select {
	case e := <-received:
		if e.Type != TypeOrder {
			t.Errorf("expected order event, got %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected order event delivery")
	}

	select {
	case e := <-received:
		t.Errorf("unexpected extra event: %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	received := make(chan Event, 1)
	token := bus.Subscribe(TypePrice, func(e Event) { received <- e })
	bus.Unsubscribe(TypePrice, token)

	bus.Publish(Event{Type: TypePrice})

	select {
	case <-received:
		t.Error("expected no delivery after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPanickingSubscriberIsolated(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	bus.Subscribe(TypeError, func(Event) { panic("boom") })
	received := make(chan Event, 1)
	bus.Subscribe(TypeError, func(e Event) { received <- e })

	bus.Publish(Event{Type: TypeError})

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("expected healthy subscriber to receive event")
	}
}
