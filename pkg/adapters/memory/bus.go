package memory

import (
	"context"
	"sync"
)

// Bus implements ports.Replicator as an in-process fan-out.
// Replicas created in one process share a Bus the way browser tabs share a
// storage area.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	buffer int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[string]map[chan []byte]struct{}),
		buffer: 64,
	}
}

// Publish delivers a copy of payload to every subscriber of key.
// Subscribers with a full buffer miss the payload.
func (b *Bus) Publish(ctx context.Context, key string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[key] {
		msg := append([]byte(nil), payload...)
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for key until ctx is canceled.
func (b *Bus) Subscribe(ctx context.Context, key string) (<-chan []byte, error) {
	ch := make(chan []byte, b.buffer)

	b.mu.Lock()
	if _, ok := b.subs[key]; !ok {
		b.subs[key] = make(map[chan []byte]struct{})
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[key]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(b.subs, key)
			}
		}
	}()
	return ch, nil
}
