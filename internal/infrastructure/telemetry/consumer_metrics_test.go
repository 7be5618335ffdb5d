package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/flightdeck/backend/internal/domain/reference"
)

type fakeStatsSource struct {
	stats reference.CacheStats
}

func (f *fakeStatsSource) Stats() reference.CacheStats {
	return f.stats
}

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return reader, provider
}

// collectMetric finds a metric by name in the reader's current snapshot.
func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestNewConsumerMetrics(t *testing.T) {
	t.Run("nil meter is rejected", func(t *testing.T) {
		_, err := NewConsumerMetrics(ConsumerMetricsConfig{})
		assert.ErrorIs(t, err, ErrMeterNil)
	})

	t.Run("creates all instruments", func(t *testing.T) {
		_, provider := newTestMeter(t)
		cm, err := NewConsumerMetrics(ConsumerMetricsConfig{
			Meter: provider.Meter("test"),
		})
		require.NoError(t, err)
		defer cm.Stop()
	})
}

func TestConsumerMetrics_Counters(t *testing.T) {
	reader, provider := newTestMeter(t)
	cm, err := NewConsumerMetrics(ConsumerMetricsConfig{
		Meter: provider.Meter("test"),
	})
	require.NoError(t, err)
	defer cm.Stop()

	ctx := context.Background()
	cm.RecordProcessed(ctx, "reference-data", "AIRPORT_UPDATED")
	cm.RecordProcessed(ctx, "reference-data", "AIRLINE_CREATED")
	cm.RecordDropped(ctx, "reference-data", "malformed")
	cm.RecordDuplicate(ctx, "flight-events")
	cm.RecordFetchThrough(ctx, "AIRPORT", "hit", 30*time.Millisecond)

	processed, ok := collectMetric(t, reader, "refcache_events_processed_total")
	require.True(t, ok)
	sum, ok := processed.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	_, ok = collectMetric(t, reader, "refcache_events_dropped_total")
	assert.True(t, ok)
	_, ok = collectMetric(t, reader, "refcache_events_duplicate_total")
	assert.True(t, ok)
	_, ok = collectMetric(t, reader, "refcache_fetch_through_total")
	assert.True(t, ok)
	_, ok = collectMetric(t, reader, "refcache_fetch_duration_seconds")
	assert.True(t, ok)
}

func TestConsumerMetrics_CacheStatsCollection(t *testing.T) {
	reader, provider := newTestMeter(t)
	source := &fakeStatsSource{stats: reference.CacheStats{Hits: 7, Misses: 3, Entries: 4}}

	cm, err := NewConsumerMetrics(ConsumerMetricsConfig{
		Meter:       provider.Meter("test"),
		StatsSource: source,
	})
	require.NoError(t, err)
	defer cm.Stop()

	// Drive a collection directly rather than waiting for the ticker.
	cm.collect(context.Background())

	entries, ok := collectMetric(t, reader, "refcache_cache_entries")
	require.True(t, ok)
	gauge, ok := entries.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(4), gauge.DataPoints[0].Value)
}

func TestConsumerMetrics_StopIsIdempotent(t *testing.T) {
	_, provider := newTestMeter(t)
	cm, err := NewConsumerMetrics(ConsumerMetricsConfig{
		Meter:           provider.Meter("test"),
		StatsSource:     &fakeStatsSource{},
		CollectInterval: time.Millisecond,
	})
	require.NoError(t, err)

	cm.Stop()
	cm.Stop()
}
