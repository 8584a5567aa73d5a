package events

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetwear/internal/logging"
)

// Handler is a callback invoked when a matching event is published.
type Handler func(Event)

type subscriber struct {
	id      uint64
	types   []EventType // empty matches every type
	handler Handler
}

func (s subscriber) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// Bus is an in-process publish/subscribe bus safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for the given event types, or for every event
// when none are given. The returned function removes the subscription; it
// is safe to call more than once.
func (b *Bus) Subscribe(handler Handler, types ...EventType) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, types: slices.Clone(types), handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscriber) bool { return s.id == id })
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers e to every matching subscriber in subscription order,
// filling in ID and Timestamp when empty. Handlers run in the caller's
// goroutine, so subscribers doing I/O must queue the event themselves. A
// panicking handler is logged and does not stop delivery to the rest.
func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.wants(e.Type) {
			deliver(s.handler, e)
		}
	}
}

func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			lg := logging.Component("events")
			lg.Error().Str("type", string(e.Type)).Interface("panic", r).Msg("subscriber panic")
		}
	}()
	h(e)
}
