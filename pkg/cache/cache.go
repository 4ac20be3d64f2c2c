// Package cache provides a generic, thread-safe TTL cache.
//
// Entries expire a fixed duration after their last Set. Expiry is measured
// against an injectable clock so windows can be driven deterministically in
// tests. Statistics are always collected; Prometheus export is optional.
package cache

import (
	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/metric"
	"github.com/c360/debugtel/pkg/clock"
)

// Cache represents a generic cache interface parameterized by value type V.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found and not expired.
	Get(key string) (V, bool)

	// Set stores a value and restarts its TTL. Returns true if a new entry was created.
	Set(key string, value V) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries, including expired entries
	// not yet collected.
	Size() int

	// Keys returns the keys of all live entries.
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics

	// Close stops background cleanup.
	Close() error
}

// EvictCallback is called when an entry leaves the cache.
type EvictCallback[V any] func(key string, value V)

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

// Option configures a cache.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
	evictCallback EvictCallback[V]
	clock         clock.Clock
}

// WithMetrics exports cache statistics under the component label prefix.
// A nil registry or empty prefix is ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(o *cacheOptions[V]) {
		if registry == nil || prefix == "" {
			return
		}
		o.metricsReg, o.metricsPrefix = registry, prefix
	}
}

// WithEvictionCallback receives expired and deleted entries.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(o *cacheOptions[V]) { o.evictCallback = callback }
}

// WithClock sets the clock entries are stamped and expired against.
func WithClock[V any](c clock.Clock) Option[V] {
	return func(o *cacheOptions[V]) {
		if c != nil {
			o.clock = c
		}
	}
}

func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	o := &cacheOptions[V]{clock: clock.Real()}
	for _, opt := range options {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
