// Package cache provides a generic TTL cache used for short-lived, per-key
// state such as error-reporting rate-limit windows.
//
// # Basic Usage
//
//	windows, err := cache.NewTTL[[]time.Time](ctx, time.Minute, 0,
//	    cache.WithClock[[]time.Time](clk),
//	)
//	if err != nil {
//	    return err
//	}
//	defer windows.Close()
//
//	windows.Set("error:timeout", hits)
//	hits, ok := windows.Get("error:timeout")
//
// # Expiry
//
// Set restarts an entry's TTL. Expired entries are removed lazily by Get and
// by a background sweep every cleanupInterval. The sweep stops when the
// constructor's context is cancelled or Close is called.
//
// # Observability
//
// Statistics are always collected and available from Stats(). WithMetrics
// additionally exports hits, misses, sets, deletes, evictions and size as
// Prometheus metrics labelled with the given prefix:
//
//	cache.NewTTL[int](ctx, ttl, 0, cache.WithMetrics[int](registry, "ratelimit"))
//
// # Thread Safety
//
// All methods are safe for concurrent use. Eviction callbacks run outside the
// cache lock.
package cache
