// Package events is the in-process publish/subscribe bus connecting the
// trading core to collaborators (journal, metrics, notifications, API).
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Type classifies bus events.
type Type string

const (
	TypeBotStarted Type = "bot_started"
	TypeBotStopped Type = "bot_stopped"
	TypeSignal     Type = "signal"
	TypeOrder      Type = "order"
	TypePrice      Type = "price"
	TypeError      Type = "error"
)

// Event is one bus message. Data carries a type-specific payload.
type Event struct {
	Type      Type        `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Handler receives published events.
type Handler func(Event)

// Bus fans events out to per-type subscribers. Delivery is asynchronous;
// a slow or panicking subscriber never blocks the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[Type]map[string]Handler
	log  zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[Type]map[string]Handler),
		log:  log,
	}
}

// Subscribe registers handler for events of type t and returns a token
// for Unsubscribe.
func (b *Bus) Subscribe(t Type, handler Handler) string {
	token := uuid.NewString()
	b.mu.Lock()
	if b.subs[t] == nil {
		b.subs[t] = make(map[string]Handler)
	}
	b.subs[t][token] = handler
	b.mu.Unlock()
	return token
}

// Unsubscribe removes the handler registered under token for type t.
func (b *Bus) Unsubscribe(t Type, token string) {
	b.mu.Lock()
	delete(b.subs[t], token)
	b.mu.Unlock()
}

// Publish delivers the event to every subscriber of its type.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.Type]))
	for _, h := range b.subs[event.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		go b.deliver(h, event)
	}
}

func (b *Bus) deliver(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("event", string(event.Type)).Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	handler(event)
}
