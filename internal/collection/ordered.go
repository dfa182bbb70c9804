package collection

import (
	"sync"
)

// Ordered is a generic thread-safe list of items with unique string keys,
// kept in insertion order.
type Ordered[T any] struct {
	mu    sync.Mutex
	items []T
	key   func(T) string
}

// New creates an empty list keyed by key.
func New[T any](key func(T) string) *Ordered[T] {
	return &Ordered[T]{
		items: make([]T, 0),
		key:   key,
	}
}

// Add appends item unless an item with the same key is present.
// Reports whether the item was added.
func (o *Ordered[T]) Add(item T) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.indexOf(o.key(item)) >= 0 {
		return false
	}
	o.items = append(o.items, item)
	return true
}

// Get returns the item with the given key.
func (o *Ordered[T]) Get(key string) (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i := o.indexOf(key); i >= 0 {
		return o.items[i], true
	}
	var zero T
	return zero, false
}

// Has reports whether an item with the given key is present.
func (o *Ordered[T]) Has(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.indexOf(key) >= 0
}

// Update applies fn to the stored item with the given key.
func (o *Ordered[T]) Update(key string, fn func(*T)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := o.indexOf(key)
	if i < 0 {
		return false
	}
	fn(&o.items[i])
	return true
}

// Remove deletes and returns the item with the given key.
func (o *Ordered[T]) Remove(key string) (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := o.indexOf(key)
	if i < 0 {
		var zero T
		return zero, false
	}
	item := o.items[i]
	o.items = append(o.items[:i], o.items[i+1:]...)
	return item, true
}

// PopLast removes and returns the most recently added item.
func (o *Ordered[T]) PopLast() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.items) == 0 {
		var zero T
		return zero, false
	}
	item := o.items[len(o.items)-1]
	o.items = o.items[:len(o.items)-1]
	return item, true
}

// Empty returns true if the list has no items.
func (o *Ordered[T]) Empty() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items) == 0
}

// Len returns the number of items in the list.
func (o *Ordered[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Snapshot returns a copy of the items in insertion order.
func (o *Ordered[T]) Snapshot() []T {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]T, len(o.items))
	copy(out, o.items)
	return out
}

// GetAndEmpty returns all items and clears the list.
func (o *Ordered[T]) GetAndEmpty() []T {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := o.items
	o.items = make([]T, 0, cap(o.items))
	return result
}

func (o *Ordered[T]) indexOf(key string) int {
	for i := range o.items {
		if o.key(o.items[i]) == key {
			return i
		}
	}
	return -1
}
