// Package event provides a synchronous pub-sub bus for run lifecycle events.
// The engine publishes stage and run events; the TUI progress view and the
// structured log sink subscribe without either side knowing the other.
package event

import (
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Handler is a function that handles a published event.
type Handler func(Event)

type subscription struct {
	id      string
	handler Handler
}

// Bus is a synchronous pub-sub event dispatcher. It is safe for concurrent
// use: multiple goroutines may publish and subscribe concurrently. Handlers
// run synchronously on the publishing goroutine and are protected against
// panics.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription // event type -> subscriptions, "*" = all
	nextID atomic.Uint64
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for a specific event type and returns a
// subscription id usable with Unsubscribe.
func (b *Bus) Subscribe(eventType string, h Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("sub-%d", b.nextID.Add(1))
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: h})
	return id
}

// SubscribeAll registers a handler called for every published event.
func (b *Bus) SubscribeAll(h Handler) string {
	return b.Subscribe("*", h)
}

// Unsubscribe removes a subscription by id. It returns true if the
// subscription existed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subs {
		for i, s := range subs {
			if s.id == id {
				b.subs[eventType] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish dispatches an event to handlers subscribed to its type, then to
// wildcard handlers, each in registration order.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	specific := append([]subscription(nil), b.subs[e.EventType()]...)
	wildcard := append([]subscription(nil), b.subs["*"]...)
	b.mu.RUnlock()

	for _, s := range specific {
		b.safeCall(s.handler, e)
	}
	for _, s := range wildcard {
		b.safeCall(s.handler, e)
	}
}

// safeCall invokes a handler, recovering and logging any panic so one
// misbehaving subscriber cannot block delivery to the rest.
func (b *Bus) safeCall(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: event handler panicked for %s: %v\n%s",
				e.EventType(), r, debug.Stack())
		}
	}()
	h(e)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}
