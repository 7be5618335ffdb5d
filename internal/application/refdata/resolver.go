// Package refdata implements the reference-data read path: serving entity
// snapshots from the local cache and fetching through to the registry when the
// cache cannot answer.
package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/domain/reference"
	"github.com/flightdeck/backend/internal/domain/shared"
	"github.com/flightdeck/backend/internal/infrastructure/telemetry"
)

// Fetcher retrieves an entity from the authoritative registry.
type Fetcher interface {
	FetchEntity(ctx context.Context, entityType reference.EntityType, id string) (json.RawMessage, error)
}

// Resolver answers entity lookups, consulting the cache first and escalating
// misses to the registry. Results of failed fetches are never cached: a miss
// caused by a registry outage must not shadow the entity once the registry
// recovers.
type Resolver struct {
	cache   reference.SnapshotCache
	fetcher Fetcher
	metrics *telemetry.ConsumerMetrics
	logger  *zap.Logger
}

// ResolverOption is a functional option for Resolver
type ResolverOption func(*Resolver)

// WithResolverMetrics attaches consumer metrics to the resolver.
func WithResolverMetrics(metrics *telemetry.ConsumerMetrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// NewResolver creates a resolver over the given cache and registry fetcher.
func NewResolver(cache reference.SnapshotCache, fetcher Fetcher, logger *zap.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		cache:   cache,
		fetcher: fetcher,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the snapshot for an entity.
//
// A cache hit is served as-is. On a miss the registry is consulted: a
// successful fetch is cached and returned, shared.ErrNotFound propagates
// without caching the absence, and registry or credential failures propagate
// so the caller can distinguish "unknown" from "unreachable".
func (r *Resolver) Resolve(ctx context.Context, entityType reference.EntityType, id string) (*reference.Snapshot, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reference", "resolve",
		telemetry.WithAttribute(telemetry.SpanAttrEntityType, string(entityType)),
		telemetry.WithAttribute(telemetry.SpanAttrEntityID, id),
	)
	defer span.End()

	snapshot, err := r.cache.Get(ctx, entityType, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if snapshot != nil {
		telemetry.SetAttribute(span, telemetry.SpanAttrCacheResult, "hit")
		return snapshot, nil
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrCacheResult, "miss")

	start := time.Now()
	data, err := r.fetcher.FetchEntity(ctx, entityType, id)
	if err != nil {
		r.recordFetch(ctx, entityType, fetchOutcome(err), time.Since(start))
		telemetry.RecordError(span, err)
		if !errors.Is(err, shared.ErrNotFound) {
			r.logger.Warn("fetch-through failed",
				zap.String("entity_type", string(entityType)),
				zap.String("entity_id", id),
				zap.Error(err))
		}
		return nil, err
	}
	r.recordFetch(ctx, entityType, "hit", time.Since(start))

	fetched := reference.Snapshot{
		EntityType: entityType,
		EntityID:   id,
		Data:       data,
		CachedAt:   time.Now().UTC(),
	}
	if err := r.cache.Put(ctx, fetched); err != nil {
		// The caller still gets the data; only reuse is lost.
		r.logger.Warn("failed to cache fetched snapshot",
			zap.String("entity_type", string(entityType)),
			zap.String("entity_id", id),
			zap.Error(err))
	}

	return &fetched, nil
}

func (r *Resolver) recordFetch(ctx context.Context, entityType reference.EntityType, outcome string, d time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordFetchThrough(ctx, string(entityType), outcome, d)
}

func fetchOutcome(err error) string {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrAuthFailure):
		return "auth_failure"
	default:
		return "unavailable"
	}
}
