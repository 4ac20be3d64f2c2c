// Package buffer provides generic, thread-safe buffer implementations with overflow policies.
//
// This package offers:
//   - CircularBuffer: fixed-size FIFO with DropOldest or DropNewest overflow
//   - Conditional draining (ReadWhile) and front reinsertion (Prepend) for batch uploads
//   - Statistics always enabled for observability
//   - Optional Prometheus metrics integration via functional options
package buffer

import (
	"github.com/c360/debugtel/metric"
)

// Buffer represents a generic FIFO buffer. The buffer is parameterized by item
// type T for type safety.
type Buffer[T any] interface {
	// Write appends an item. When the buffer is full the overflow policy
	// decides which item is dropped.
	Write(item T) error

	// Read retrieves and removes the oldest item.
	// Returns the zero value and false if the buffer is empty.
	Read() (T, bool)

	// ReadBatch retrieves and removes up to max items from the front.
	ReadBatch(max int) []T

	// ReadWhile removes items from the front for as long as accept returns
	// true. accept receives the candidate item and the number of items already
	// taken in this call. The check and removal happen under one lock.
	ReadWhile(accept func(item T, taken int) bool) []T

	// Prepend reinserts items at the front, preserving their order, so the
	// first element of items is read next. If the result exceeds capacity the
	// oldest items are evicted from the front and passed to the drop callback.
	// Returns the number of evicted items.
	Prepend(items []T) int

	// RemoveFunc removes every item for which match returns true, keeping
	// the order of the rest. The drop callback is not invoked. Returns the
	// number of removed items.
	RemoveFunc(match func(item T) bool) int

	// Peek retrieves the oldest item without removing it.
	Peek() (T, bool)

	// Snapshot returns a copy of the buffered items, oldest first.
	Snapshot() []T

	// Size returns the current number of items in the buffer.
	Size() int

	// Capacity returns the maximum number of items the buffer can hold.
	Capacity() int

	// IsFull returns true if the buffer is at maximum capacity.
	IsFull() bool

	// IsEmpty returns true if the buffer contains no items.
	IsEmpty() bool

	// Clear removes all items without invoking the drop callback and
	// returns how many were removed.
	Clear() int

	// Stats returns buffer statistics (always available for observability).
	Stats() *Statistics

	// Close shuts down the buffer. Writes after Close fail.
	Close() error
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items when the buffer is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called when an item is dropped due to overflow policy.
// It receives the item that was dropped and runs outside the buffer lock.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a new circular buffer with the specified capacity and options.
// Stats are ALWAYS collected. Metrics are optional via WithMetrics().
// Returns an error if metrics registration fails when metrics are requested.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}

// Option configures a buffer.
type Option[T any] func(*bufferOptions[T])

type bufferOptions[T any] struct {
	overflowPolicy OverflowPolicy
	dropCallback   DropCallback[T]
	metricsReg     *metric.MetricsRegistry
	metricsPrefix  string
}

// WithOverflowPolicy sets what happens on a write to a full buffer. The
// default is DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(o *bufferOptions[T]) { o.overflowPolicy = policy }
}

// WithDropCallback receives every item evicted by overflow or by Prepend.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(o *bufferOptions[T]) { o.dropCallback = callback }
}

// WithMetrics exports the buffer statistics under the component label
// prefix, e.g. "upload_queue". A nil registry or empty prefix is ignored.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(o *bufferOptions[T]) {
		if registry == nil || prefix == "" {
			return
		}
		o.metricsReg, o.metricsPrefix = registry, prefix
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	o := &bufferOptions[T]{overflowPolicy: DropOldest}
	for _, opt := range options {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
