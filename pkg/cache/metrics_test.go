package cache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/debugtel/metric"
	"github.com/c360/debugtel/pkg/clock"
)

func TestCacheMetricsExport(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	clk := clock.NewFake(epoch)

	c, err := NewTTL[string](context.Background(), time.Minute, time.Hour,
		WithMetrics[string](registry, "ratelimit"),
		WithClock[string](clk),
	)
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")
	c.Get("a")
	c.Get("missing")
	_, _ = c.Delete("b")

	clk.Advance(2 * time.Minute)
	c.Get("a")

	require.NotNil(t, c.metrics)
	want := map[string]float64{opHit: 1, opMiss: 2, opSet: 2, opDelete: 1, opExpire: 1}
	for op, n := range want {
		assert.Equal(t, n, testutil.ToFloat64(c.metrics.ops.WithLabelValues(op)), op)
	}
	assert.Equal(t, 0.0, testutil.ToFloat64(c.metrics.size))
}

func TestCacheMetrics_DuplicatePrefixFails(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	c, err := NewTTL[int](context.Background(), time.Minute, 0, WithMetrics[int](registry, "dup"))
	require.NoError(t, err)
	defer c.Close()

	_, err = NewTTL[int](context.Background(), time.Minute, 0, WithMetrics[int](registry, "dup"))
	assert.Error(t, err)
}

func TestCacheMetrics_IgnoredWithoutRegistry(t *testing.T) {
	c, err := NewTTL[int](context.Background(), time.Minute, 0, WithMetrics[int](nil, "x"))
	require.NoError(t, err)
	defer c.Close()
	assert.Nil(t, c.metrics)
}
