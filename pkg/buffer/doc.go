// Package buffer provides a thread-safe circular buffer with configurable
// overflow policies, built-in statistics and optional Prometheus metrics.
//
// # Quick Start
//
//	queue, err := buffer.NewCircularBuffer[event.DebugEvent](1000,
//		buffer.WithOverflowPolicy[event.DebugEvent](buffer.DropOldest),
//		buffer.WithDropCallback[event.DebugEvent](func(ev event.DebugEvent) {
//			stats.evicted.Add(1)
//		}),
//	)
//
// # Overflow Policies
//
//   - DropOldest: evict the oldest item to make room (default)
//   - DropNewest: discard the incoming item when full
//
// Either way the dropped item is handed to the drop callback, which runs
// outside the buffer lock.
//
// # Batch draining
//
// ReadWhile removes items from the front for as long as a predicate accepts
// them, under a single lock acquisition. The batch uploader uses it to take
// events until a count or byte ceiling is reached:
//
//	var bytes int
//	batch := queue.ReadWhile(func(ev event.DebugEvent, taken int) bool {
//		size := event.EstimateSize(ev)
//		if taken > 0 && (taken >= maxCount || bytes+size > maxBytes) {
//			return false
//		}
//		bytes += size
//		return true
//	})
//
// Prepend puts a failed batch back at the front in its original order. When
// the result would exceed capacity the oldest items are evicted from the
// front and reported through the drop callback.
//
// # Observability
//
// Statistics are always collected (writes, reads, overflows, drops,
// requeues, size high-water mark) and available from Stats(). WithMetrics
// additionally exports them as Prometheus metrics labelled with a component
// prefix.
package buffer
