package eventbus

import (
	"context"
	"sync"

	"solSniperBot/internal/ports"
)

// MemBus is an in-memory fan-out implementation of ports.EventPublisher.
// Subscribers receive events on buffered channels; a slow subscriber drops
// events rather than blocking the orchestrator.
type MemBus struct {
	logger ports.Logger

	mu   sync.RWMutex
	subs []chan ports.PositionEvent
}

// New creates an empty bus.
func New(logger ports.Logger) *MemBus {
	return &MemBus{logger: logger}
}

// Subscribe registers a new consumer and returns its channel.
func (b *MemBus) Subscribe(buffer int) <-chan ports.PositionEvent {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan ports.PositionEvent, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers the event to every subscriber without blocking.
func (b *MemBus) Publish(ctx context.Context, ev ports.PositionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			if b.logger != nil {
				b.logger.Warn(ctx, "Event dropped: subscriber channel full", map[string]interface{}{"eventType": ev.Type})
			}
		}
	}
}

// Close closes all subscriber channels.
func (b *MemBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
