// Package telemetry holds the bounded in-memory buffers behind the status report.
package telemetry

import "fmt"

// Ring is a fixed-capacity buffer that keeps the most recent items.
// It is not safe for concurrent use; callers guard it with their own lock.
type Ring[T any] struct {
	items []T
	next  int
	full  bool
}

// NewRing creates a ring holding at most capacity items. It panics if capacity < 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("telemetry: ring capacity must be at least 1, got %d", capacity))
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends item, evicting the oldest one when the ring is full.
func (r *Ring[T]) Push(item T) {
	r.items[r.next] = item
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

// Items returns a copy of the contents, oldest first.
func (r *Ring[T]) Items() []T {
	if !r.full {
		return append([]T(nil), r.items[:r.next]...)
	}
	out := make([]T, 0, len(r.items))
	out = append(out, r.items[r.next:]...)
	return append(out, r.items[:r.next]...)
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int {
	if r.full {
		return len(r.items)
	}
	return r.next
}

// Cap returns the capacity.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}
