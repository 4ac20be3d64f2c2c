package buffer

import (
	"sync"

	"github.com/c360/debugtel/errors"
)

// circularBuffer is a thread-safe circular buffer with configurable overflow policies.
type circularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int            // Points to the next write position
	tail     int            // Points to the next read position
	stats    *Statistics    // ALWAYS initialized for observability
	metrics  *bufferMetrics // Optional Prometheus metrics
	opts     *bufferOptions[T]
	closed   bool
}

// newCircularBuffer creates a new circular buffer instance.
// Returns an error if metrics registration fails when requested.
func newCircularBuffer[T any](capacity int, opts *bufferOptions[T]) (*circularBuffer[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	var metrics *bufferMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newCircularBuffer", "metrics registration")
		}
	}

	return &circularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}, nil
}

// Write adds an item to the buffer according to the overflow policy.
func (cb *circularBuffer[T]) Write(item T) error {
	cb.mu.Lock()

	if cb.closed {
		cb.mu.Unlock()
		return errors.WrapInvalid(errors.ErrClosed, "Buffer", "Write", "buffer closed")
	}

	var dropped []T
	if cb.size == cb.capacity {
		cb.stats.Overflow()
		cb.stats.Drop()
		if cb.metrics != nil {
			cb.metrics.recordOverflow()
			cb.metrics.recordDrop()
		}

		if cb.opts.overflowPolicy == DropNewest {
			cb.mu.Unlock()
			cb.notifyDropped([]T{item})
			return nil
		}

		dropped = append(dropped, cb.popFront())
	}

	cb.items[cb.head] = item
	cb.head = (cb.head + 1) % cb.capacity
	cb.size++

	cb.stats.Write()
	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.recordWrite(cb.size, cb.capacity)
	}
	cb.mu.Unlock()

	cb.notifyDropped(dropped)
	return nil
}

// popFront removes and returns the oldest item. Caller holds the lock and
// guarantees size > 0.
func (cb *circularBuffer[T]) popFront() T {
	var zero T
	item := cb.items[cb.tail]
	cb.items[cb.tail] = zero // Clear for GC
	cb.tail = (cb.tail + 1) % cb.capacity
	cb.size--
	return item
}

// notifyDropped invokes the drop callback outside the lock.
func (cb *circularBuffer[T]) notifyDropped(items []T) {
	if cb.opts.dropCallback == nil {
		return
	}
	for _, item := range items {
		cb.opts.dropCallback(item)
	}
}

// Read retrieves and removes one item from the buffer.
func (cb *circularBuffer[T]) Read() (T, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.size == 0 {
		var zero T
		return zero, false
	}

	item := cb.popFront()
	cb.stats.Read()
	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.recordRead(cb.size, cb.capacity)
	}

	return item, true
}

// ReadBatch retrieves and removes up to max items from the buffer.
func (cb *circularBuffer[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}
	return cb.ReadWhile(func(_ T, taken int) bool {
		return taken < max
	})
}

// ReadWhile removes items from the front while accept returns true.
func (cb *circularBuffer[T]) ReadWhile(accept func(item T, taken int) bool) []T {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.size == 0 {
		return nil
	}

	var result []T
	for cb.size > 0 && accept(cb.items[cb.tail], len(result)) {
		result = append(result, cb.popFront())
		cb.stats.Read()
	}

	if len(result) > 0 {
		cb.stats.UpdateSize(int64(cb.size))
		if cb.metrics != nil {
			cb.metrics.recordReads(len(result), cb.size, cb.capacity)
		}
	}

	return result
}

// Prepend reinserts items at the front of the buffer in their original order.
func (cb *circularBuffer[T]) Prepend(items []T) int {
	if len(items) == 0 {
		return 0
	}

	cb.mu.Lock()

	if cb.closed {
		cb.mu.Unlock()
		cb.notifyDropped(items)
		return len(items)
	}

	// Rebuild in logical order: items first, then the current contents.
	combined := make([]T, 0, len(items)+cb.size)
	combined = append(combined, items...)
	for i := 0; i < cb.size; i++ {
		combined = append(combined, cb.items[(cb.tail+i)%cb.capacity])
	}

	var evicted []T
	if excess := len(combined) - cb.capacity; excess > 0 {
		evicted = append(evicted, combined[:excess]...)
		combined = combined[excess:]
		for range evicted {
			cb.stats.Drop()
		}
		cb.stats.Overflow()
		if cb.metrics != nil {
			cb.metrics.recordOverflow()
			for range evicted {
				cb.metrics.recordDrop()
			}
		}
	}

	var zero T
	for i := range cb.items {
		cb.items[i] = zero
	}
	copy(cb.items, combined)
	cb.tail = 0
	cb.size = len(combined)
	cb.head = cb.size % cb.capacity

	cb.stats.Requeue(int64(len(items) - len(evicted)))
	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.updateSize(cb.size, cb.capacity)
	}
	cb.mu.Unlock()

	cb.notifyDropped(evicted)
	return len(evicted)
}

// RemoveFunc compacts the buffer, dropping items that match.
func (cb *circularBuffer[T]) RemoveFunc(match func(item T) bool) int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	kept := make([]T, 0, cb.size)
	for i := 0; i < cb.size; i++ {
		item := cb.items[(cb.tail+i)%cb.capacity]
		if !match(item) {
			kept = append(kept, item)
		}
	}
	removed := cb.size - len(kept)
	if removed == 0 {
		return 0
	}

	var zero T
	for i := range cb.items {
		cb.items[i] = zero
	}
	copy(cb.items, kept)
	cb.tail = 0
	cb.size = len(kept)
	cb.head = cb.size % cb.capacity

	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.updateSize(cb.size, cb.capacity)
	}
	return removed
}

// Peek retrieves one item without removing it from the buffer.
func (cb *circularBuffer[T]) Peek() (T, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.size == 0 {
		var zero T
		return zero, false
	}
	return cb.items[cb.tail], true
}

// Snapshot returns a copy of the buffered items, oldest first.
func (cb *circularBuffer[T]) Snapshot() []T {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	out := make([]T, cb.size)
	for i := 0; i < cb.size; i++ {
		out[i] = cb.items[(cb.tail+i)%cb.capacity]
	}
	return out
}

// Size returns the current number of items in the buffer.
func (cb *circularBuffer[T]) Size() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size
}

// Capacity returns the maximum number of items the buffer can hold.
func (cb *circularBuffer[T]) Capacity() int {
	return cb.capacity // Immutable, no lock needed
}

// IsFull returns true if the buffer is at maximum capacity.
func (cb *circularBuffer[T]) IsFull() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size == cb.capacity
}

// IsEmpty returns true if the buffer contains no items.
func (cb *circularBuffer[T]) IsEmpty() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size == 0
}

// Clear removes all items from the buffer.
func (cb *circularBuffer[T]) Clear() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	removed := cb.size
	var zero T
	for i := range cb.items {
		cb.items[i] = zero
	}
	cb.head = 0
	cb.tail = 0
	cb.size = 0

	cb.stats.UpdateSize(0)
	if cb.metrics != nil {
		cb.metrics.updateSize(0, cb.capacity)
	}
	return removed
}

// Stats returns buffer statistics (always available for observability).
func (cb *circularBuffer[T]) Stats() *Statistics {
	return cb.stats
}

// Close shuts down the buffer.
func (cb *circularBuffer[T]) Close() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.closed = true
	return nil
}
