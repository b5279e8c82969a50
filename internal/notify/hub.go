// Package notify fans order events out to connected admin dashboards.
package notify

import (
	"sync"

	"github.com/flicky/phone-marketplace/internal/model"
)

const subscriberBuffer = 16

// Hub broadcasts events to every current subscriber. Slow subscribers miss
// events instead of blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan model.OrderEvent]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan model.OrderEvent]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called
// once the listener is done.
func (h *Hub) Subscribe() (<-chan model.OrderEvent, func()) {
	ch := make(chan model.OrderEvent, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

// Broadcast delivers e to all subscribers and returns how many received it.
func (h *Hub) Broadcast(e model.OrderEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for ch := range h.subs {
		select {
		case ch <- e:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
