// Package latest provides a fixed-capacity message channel with
// overwrite-on-send semantics. It is the only construct in this
// repository through which tasks share state: producers publish values,
// consumers observe the newest one, and older unread values may be
// discarded. Send never blocks.
package latest

import (
	"context"
	"sync"
)

// Channel is a bounded queue of at most cap values. When full, Send
// evicts the oldest value instead of blocking, so the most recently
// sent value is always observable. The zero value is not usable; use New.
type Channel[T any] struct {
	mu    sync.Mutex
	slots []T
	head  int // index of oldest value
	count int

	// notify wakes at most one blocked Receive per Send. Capacity 1 so
	// a Send with no waiter does not block.
	notify chan struct{}
}

// New creates a channel holding at most capacity values. Capacity must
// be at least 1; most producers in this repository use capacity 1 to
// get pure latest-value semantics.
func New[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel[T]{
		slots:  make([]T, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Send publishes v. If the channel is full the oldest pending value is
// evicted. Send never blocks.
func (c *Channel[T]) Send(v T) {
	c.mu.Lock()
	if c.count == len(c.slots) {
		// Evict the oldest slot.
		c.head = (c.head + 1) % len(c.slots)
		c.count--
	}
	c.slots[(c.head+c.count)%len(c.slots)] = v
	c.count++
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Clear discards all pending values. Producers that must guarantee
// freshness call Clear immediately before Send so a slow consumer sees
// the newest state rather than a backlog.
func (c *Channel[T]) Clear() {
	c.mu.Lock()
	var zero T
	for i := range c.slots {
		c.slots[i] = zero
	}
	c.head = 0
	c.count = 0
	c.mu.Unlock()
}

// TryReceive returns the oldest pending value and removes it. It never
// blocks; ok is false when the channel is empty.
func (c *Channel[T]) TryReceive() (v T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		return v, false
	}
	v = c.slots[c.head]
	var zero T
	c.slots[c.head] = zero
	c.head = (c.head + 1) % len(c.slots)
	c.count--
	return v, true
}

// TryPeek returns the oldest pending value without removing it, so a
// later TryPeek or Receive still observes it. It never blocks.
func (c *Channel[T]) TryPeek() (v T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		return v, false
	}
	return c.slots[c.head], true
}

// Receive blocks until a value is available or ctx is done. The lock is
// never held while waiting.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	for {
		if v, ok := c.TryReceive(); ok {
			return v, nil
		}
		select {
		case <-c.notify:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len reports the number of pending values.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
