// Package events carries store changes to whoever needs to react to them:
// the snapshot cache, SSE subscribers and, when configured, NATS.
package events

import (
	"context"
	"sync"

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/port"

	"go.uber.org/zap"
)

// Hub fans changes out to in-process subscribers. Slow subscribers lose
// changes rather than block writers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.Change
	next   int
	closed bool
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{subs: make(map[int]chan domain.Change), logger: logger}
}

// Subscribe registers a subscriber with the given buffer. The returned
// func unsubscribes and closes the channel; calling it twice is safe.
func (h *Hub) Subscribe(buffer int) (<-chan domain.Change, func()) {
	ch := make(chan domain.Change, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
}

// Publish delivers change to every subscriber without blocking.
func (h *Hub) Publish(_ context.Context, change domain.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- change:
		default:
			h.logger.Debug("events: subscriber full, dropping change",
				zap.Int("subscriber", id),
				zap.String("collection", change.Collection),
			)
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}

// Fanout publishes to several publishers in order. Nil entries are skipped.
type Fanout []port.ChangePublisher

func (f Fanout) Publish(ctx context.Context, change domain.Change) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, change)
		}
	}
}
