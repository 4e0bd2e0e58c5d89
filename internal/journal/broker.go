package journal

import (
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/lunashim/internal/bus"
)

const subscriberBufSize = 256

// Broker fans bus events out to live subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan bus.Event
	nextID      atomic.Int64
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int64]chan bus.Event)}
}

// Subscribe registers a subscriber. Slow subscribers have events dropped.
func (b *Broker) Subscribe() (int64, <-chan bus.Event) {
	id := b.nextID.Add(1)
	ch := make(chan bus.Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers evt to every subscriber without blocking.
func (b *Broker) Publish(evt bus.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
