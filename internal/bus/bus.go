// Package bus is the in-process pub/sub channel the reconciliation layer
// publishes scope change events on. Subscribers (CLI watch output, host
// notifier bridges) consume events without coupling to the sync packages.
package bus

import (
	"sync"
	"time"
)

const eventBufferSize = 16

// Event describes the outcome of one reconcile pass over a scope.
type Event struct {
	ConnectionID string
	Scope        string
	Added        int
	Modified     int
	Removed      int
	At           time.Time
}

// HasChanges reports whether the pass observed any remote mutation.
func (e *Event) HasChanges() bool {
	return e.Added > 0 || e.Modified > 0 || e.Removed > 0
}

// Bus fans events out to all subscribers. Publishing never blocks: a
// subscriber with a full buffer misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan *Event
	closed bool
}

func New() *Bus {
	return &Bus{
		subs: make([]chan *Event, 0),
	}
}

// Subscribe returns a channel that receives future events.
func (b *Bus) Subscribe() <-chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Event, eventBufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (b *Bus) Unsubscribe(ch <-chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == ch {
			close(sub)
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
}

// Publish delivers the event to every subscriber with buffer space.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub <- event:
		default:
			// Subscriber is full, skip to avoid blocking the sync loop.
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}
