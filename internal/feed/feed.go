// Package feed keeps a bounded, sequence-ordered history of items and fans
// new items out to subscribers without ever blocking the publisher.
package feed

import (
	"sync"
)

// DefaultCapacity is the history length used when New is given a
// non-positive capacity.
const DefaultCapacity = 200

// Feed is a generic thread-safe bounded history.
type Feed[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	seqOf    func(T) uint64

	subs    map[int]chan T
	nextSub int
	dropped uint64
}

// New creates an empty feed. seqOf extracts the monotonically increasing
// sequence number the publisher stamped on each item.
func New[T any](capacity int, seqOf func(T) uint64) *Feed[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
		seqOf:    seqOf,
		subs:     make(map[int]chan T),
	}
}

// Push appends items, evicting the oldest beyond capacity, and offers each
// item to every subscriber. A subscriber whose buffer is full misses it.
func (f *Feed[T]) Push(items ...T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, items...)
	if over := len(f.items) - f.capacity; over > 0 {
		f.items = append(f.items[:0], f.items[over:]...)
	}

	for _, item := range items {
		for _, ch := range f.subs {
			select {
			case ch <- item:
			default:
				f.dropped++
			}
		}
	}
}

// Since returns the retained items with a sequence number greater than seq,
// oldest first.
func (f *Feed[T]) Since(seq uint64) []T {
	f.mu.Lock()
	defer f.mu.Unlock()

	// items are ordered, so scan back from the newest
	i := len(f.items)
	for i > 0 && f.seqOf(f.items[i-1]) > seq {
		i--
	}
	out := make([]T, len(f.items)-i)
	copy(out, f.items[i:])
	return out
}

// Latest returns the newest item, or the zero value and false when empty.
func (f *Feed[T]) Latest() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		var zero T
		return zero, false
	}
	return f.items[len(f.items)-1], true
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func unregisters it and closes the channel; it is safe to call
// more than once.
func (f *Feed[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan T, buffer)

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Empty returns true if the feed holds no items.
func (f *Feed[T]) Empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items) == 0
}

// Len returns the number of retained items.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was not keeping up.
func (f *Feed[T]) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Clear removes all retained items. Subscribers are kept.
func (f *Feed[T]) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = f.items[:0]
}
