package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/debugtel/metric"
)

// Operation label values
const (
	opHit    = "hit"
	opMiss   = "miss"
	opSet    = "set"
	opDelete = "delete"
	opExpire = "expire"
)

// cacheMetrics exports one operation counter and a size gauge per cache.
type cacheMetrics struct {
	ops  *prometheus.CounterVec
	size prometheus.Gauge
}

func newCacheMetrics(registry *metric.MetricsRegistry, prefix string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &cacheMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "operations_total",
			Help:        "Cache operations by kind: hit, miss, set, delete, expire",
			ConstLabels: labels,
		}, []string{"op"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "entries",
			Help:        "Entries currently held, including expired ones not yet collected",
			ConstLabels: labels,
		}),
	}

	if err := registry.RegisterCounterVec(prefix, "cache_operations", m.ops); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "cache_entries", m.size); err != nil {
		registry.Unregister(prefix, "cache_operations")
		return nil, err
	}
	return m, nil
}

func (m *cacheMetrics) recordHit()    { m.ops.WithLabelValues(opHit).Inc() }
func (m *cacheMetrics) recordMiss()   { m.ops.WithLabelValues(opMiss).Inc() }
func (m *cacheMetrics) recordSet()    { m.ops.WithLabelValues(opSet).Inc() }
func (m *cacheMetrics) recordDelete() { m.ops.WithLabelValues(opDelete).Inc() }

func (m *cacheMetrics) recordEvictions(n int) {
	m.ops.WithLabelValues(opExpire).Add(float64(n))
}

func (m *cacheMetrics) updateSize(size int) {
	m.size.Set(float64(size))
}
