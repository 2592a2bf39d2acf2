package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fillcast/core/factory"
	coremetrics "github.com/kilianp07/fillcast/core/metrics"
	"github.com/kilianp07/fillcast/core/model"
)

func TestPromSinkRecordsRunsAndCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordForecastRun(coremetrics.ForecastRunEvent{Cached: false, Points: 10, Duration: time.Second}))
	require.NoError(t, sink.RecordForecastRun(coremetrics.ForecastRunEvent{Cached: true, Filtered: true, Points: 4}))
	require.NoError(t, sink.RecordCacheEvent(coremetrics.CacheEvent{Op: coremetrics.CacheClear, Count: 3}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("false", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("true", "true")))
	assert.Equal(t, 4.0, testutil.ToFloat64(sink.points))
	assert.Equal(t, 3.0, testutil.ToFloat64(sink.cacheOps.WithLabelValues("clear")))
	assert.Equal(t, 2, testutil.CollectAndCount(sink.duration))
}

func TestPromSinkRecordsBacktest(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordBacktest([]coremetrics.BacktestEvent{
		{Cutoff: model.MustDay("2025-03-02"), CoveragePct: 50},
		{WAPE: 20, WAPEValid: true, CoveragePct: 75},
	}))
	assert.Equal(t, 50.0, testutil.ToFloat64(sink.coverage.WithLabelValues("2025-03-02")))
	assert.Equal(t, 75.0, testutil.ToFloat64(sink.coverage.WithLabelValues(OverallScope)))
	assert.Equal(t, 20.0, testutil.ToFloat64(sink.wape.WithLabelValues(OverallScope)))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.wape))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, second.RecordCacheEvent(coremetrics.CacheEvent{Op: coremetrics.CacheHit, Count: 1}))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.cacheOps.WithLabelValues("hit")))
}

func TestFactoryRegistersSinks(t *testing.T) {
	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, sink)

	_, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "statsd"}})
	assert.Error(t, err)
}
