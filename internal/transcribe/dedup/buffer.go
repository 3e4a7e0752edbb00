// Package dedup provides the bounded set of recently seen segment identifiers.
package dedup

import "sync"

// DefaultCapacity is the number of identifiers kept before the oldest is evicted.
const DefaultCapacity = 100

// Buffer is a bounded FIFO set. An identifier is never resident twice; once
// the buffer is full the oldest identifier is evicted to admit a new one.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	order    []string
	members  map[string]struct{}
}

// New creates a Buffer holding at most capacity identifiers.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		members:  make(map[string]struct{}, capacity),
	}
}

// Seen reports whether id is currently resident.
func (b *Buffer) Seen(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.members[id]
	return ok
}

// Admit adds id unless it is already resident. It returns true when id was
// newly admitted, which makes the check and the insert a single step.
func (b *Buffer) Admit(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.members[id]; ok {
		return false
	}

	b.order = append(b.order, id)
	b.members[id] = struct{}{}

	for len(b.order) > b.capacity {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.members, oldest)
	}
	return true
}

// Len returns the number of resident identifiers.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}
