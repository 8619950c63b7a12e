// Package notify delivers state snapshots to subscribed observers.
package notify

import (
	"slices"
	"sync"
)

// Hub fans a value out to observers in subscription order.
type Hub[T any] struct {
	mu        sync.RWMutex
	observers map[int]func(T)
	nextID    int
}

// NewHub creates an empty Hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{observers: make(map[int]func(T))}
}

// Subscribe registers fn and returns a func that removes it.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.observers[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.observers, id)
	}
}

// Publish calls every observer with v on the calling goroutine.
func (h *Hub[T]) Publish(v T) {
	for _, fn := range h.snapshot() {
		fn(v)
	}
}

// Reset removes all observers.
func (h *Hub[T]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = make(map[int]func(T))
}

// Len returns the number of observers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

func (h *Hub[T]) snapshot() []func(T) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]int, 0, len(h.observers))
	for id := range h.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.observers[id])
	}
	return fns
}
