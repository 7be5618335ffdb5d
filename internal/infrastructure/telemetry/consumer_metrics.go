// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/domain/reference"
)

// ConsumerMetrics tracks event consumption, cache effectiveness and
// fetch-through activity. Skipped (dropped) events are acknowledged and never
// retried, so the dropped counter is the only place they remain visible;
// alerting belongs on that counter.
type ConsumerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	eventsProcessedTotal *Counter
	eventsDroppedTotal   *Counter
	eventsDuplicateTotal *Counter
	fetchThroughTotal    *Counter

	// Histogram metrics
	fetchDuration *Histogram

	// Gauge metrics (point-in-time values)
	cacheEntries *Gauge
	cacheHits    *Gauge
	cacheMisses  *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	statsSource reference.StatsProvider
}

// ConsumerMetricsConfig holds configuration for consumer metrics.
type ConsumerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	StatsSource     reference.StatsProvider
}

// NewConsumerMetrics creates a new ConsumerMetrics instance.
func NewConsumerMetrics(cfg ConsumerMetricsConfig) (*ConsumerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cm := &ConsumerMetrics{
		meter:       cfg.Meter,
		logger:      logger,
		stopChan:    make(chan struct{}),
		statsSource: cfg.StatsSource,
	}

	var err error

	cm.eventsProcessedTotal, err = NewCounter(
		cfg.Meter,
		"refcache_events_processed_total",
		"Total number of change events applied",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	cm.eventsDroppedTotal, err = NewCounter(
		cfg.Meter,
		"refcache_events_dropped_total",
		"Total number of change events skipped and acknowledged",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	cm.eventsDuplicateTotal, err = NewCounter(
		cfg.Meter,
		"refcache_events_duplicate_total",
		"Total number of redelivered events recognized as duplicates",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	cm.fetchThroughTotal, err = NewCounter(
		cfg.Meter,
		"refcache_fetch_through_total",
		"Total number of cache misses escalated to the registry",
		"{requests}",
	)
	if err != nil {
		return nil, err
	}

	cm.fetchDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "refcache_fetch_duration_seconds",
		Description: "Registry fetch-through request duration",
		Unit:        "s",
		Boundaries:  FetchDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	cm.cacheEntries, err = NewGauge(
		cfg.Meter,
		"refcache_cache_entries",
		"Current number of cached snapshots",
		"{entries}",
	)
	if err != nil {
		return nil, err
	}

	cm.cacheHits, err = NewGauge(
		cfg.Meter,
		"refcache_cache_hits",
		"Cumulative cache hits as observed at collection time",
		"{hits}",
	)
	if err != nil {
		return nil, err
	}

	cm.cacheMisses, err = NewGauge(
		cfg.Meter,
		"refcache_cache_misses",
		"Cumulative cache misses as observed at collection time",
		"{misses}",
	)
	if err != nil {
		return nil, err
	}

	// Start periodic collection if a stats source is configured
	if cfg.StatsSource != nil {
		interval := cfg.CollectInterval
		if interval == 0 {
			interval = time.Minute
		}
		cm.startCollector(interval)
	}

	return cm, nil
}

// RecordProcessed records a successfully applied change event.
func (cm *ConsumerMetrics) RecordProcessed(ctx context.Context, topic, eventType string) {
	cm.eventsProcessedTotal.Inc(ctx,
		AttrTopic.String(topic),
		AttrEventType.String(eventType),
	)
}

// RecordDropped records an event that was skipped and acknowledged.
func (cm *ConsumerMetrics) RecordDropped(ctx context.Context, topic, reason string) {
	cm.eventsDroppedTotal.Inc(ctx,
		AttrTopic.String(topic),
		AttrDropReason.String(reason),
	)
}

// RecordDuplicate records a redelivered event that was recognized and skipped.
func (cm *ConsumerMetrics) RecordDuplicate(ctx context.Context, topic string) {
	cm.eventsDuplicateTotal.Inc(ctx, AttrTopic.String(topic))
}

// RecordFetchThrough records a registry fetch and its outcome
// ("hit", "not_found", "auth_failure" or "unavailable").
func (cm *ConsumerMetrics) RecordFetchThrough(ctx context.Context, entityType, outcome string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		AttrEntityType.String(entityType),
		AttrOutcome.String(outcome),
	}
	cm.fetchThroughTotal.Inc(ctx, attrs...)
	cm.fetchDuration.RecordDuration(ctx, duration, attrs...)
}

// startCollector starts the periodic cache stats collection goroutine.
func (cm *ConsumerMetrics) startCollector(interval time.Duration) {
	cm.collectOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-cm.stopChan:
					return
				case <-ticker.C:
					cm.collect(context.Background())
				}
			}
		}()
	})
}

// collect records a point-in-time view of the cache.
func (cm *ConsumerMetrics) collect(ctx context.Context) {
	stats := cm.statsSource.Stats()
	cm.cacheEntries.Record(ctx, int64(stats.Entries))
	cm.cacheHits.Record(ctx, stats.Hits)
	cm.cacheMisses.Record(ctx, stats.Misses)
}

// Stop stops the periodic collector. Safe to call multiple times.
func (cm *ConsumerMetrics) Stop() {
	cm.stopOnce.Do(func() {
		close(cm.stopChan)
	})
}

// MetricsError describes a metrics setup failure.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewConsumerMetrics", Err: "meter cannot be nil"}
