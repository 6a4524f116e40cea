package repository

import (
	"context"
	"sync"

	"campus_chat/internal/chat/domain"
)

// MemoryHub in process Broadcaster for a single gateway node and tests.
// Publish delivers synchronously, so frames on one channel keep their order.
type MemoryHub struct {
	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]func(domain.Frame)
}

// NewMemoryHub create MemoryHub
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[string]map[uint64]func(domain.Frame))}
}

// Publish deliver frame to every current subscriber of channel
func (h *MemoryHub) Publish(ctx context.Context, channel string, frame domain.Frame) error {
	h.mu.RLock()
	handlers := make([]func(domain.Frame), 0, len(h.subs[channel]))
	for _, fn := range h.subs[channel] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(frame)
	}
	return nil
}

// Subscribe register handler until ctx is done
func (h *MemoryHub) Subscribe(ctx context.Context, channel string, handler func(frame domain.Frame)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	h.next++
	id := h.next
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[uint64]func(domain.Frame))
	}
	h.subs[channel][id] = handler
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[channel], id)
		if len(h.subs[channel]) == 0 {
			delete(h.subs, channel)
		}
	}()
	return nil
}

// Subscribers number of handlers on channel
func (h *MemoryHub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}
