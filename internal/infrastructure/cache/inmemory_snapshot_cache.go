package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/domain/reference"
)

// InMemorySnapshotCache implements reference.SnapshotCache over a sync.Map.
// Entries never expire: staleness is bounded by event-bus lag, so there is no
// TTL and no cleanup goroutine. Store/Delete on one key are atomic, giving
// the required last-completed-write-wins behavior without a global lock.
type InMemorySnapshotCache struct {
	entries sync.Map // string -> reference.Snapshot
	logger  *zap.Logger

	// Stats for monitoring
	hits   int64
	misses int64
}

// InMemorySnapshotCacheOption is a functional option for configuring the cache
type InMemorySnapshotCacheOption func(*InMemorySnapshotCache)

// WithSnapshotCacheLogger sets the logger for the cache
func WithSnapshotCacheLogger(logger *zap.Logger) InMemorySnapshotCacheOption {
	return func(c *InMemorySnapshotCache) {
		c.logger = logger
	}
}

// NewInMemorySnapshotCache creates an empty snapshot cache.
func NewInMemorySnapshotCache(opts ...InMemorySnapshotCacheOption) *InMemorySnapshotCache {
	cache := &InMemorySnapshotCache{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// cacheKey generates the map key for an entity.
func cacheKey(entityType reference.EntityType, id string) string {
	return string(entityType) + ":" + id
}

// Get retrieves the latest snapshot for an entity. A nil snapshot with a nil
// error is a cache miss.
func (c *InMemorySnapshotCache) Get(_ context.Context, entityType reference.EntityType, id string) (*reference.Snapshot, error) {
	if value, ok := c.entries.Load(cacheKey(entityType, id)); ok {
		snapshot := value.(reference.Snapshot)
		atomic.AddInt64(&c.hits, 1)
		c.logger.Debug("cache hit",
			zap.String("entity_type", string(entityType)),
			zap.String("entity_id", id))
		return &snapshot, nil
	}

	atomic.AddInt64(&c.misses, 1)
	c.logger.Debug("cache miss",
		zap.String("entity_type", string(entityType)),
		zap.String("entity_id", id))
	return nil, nil
}

// Put stores a snapshot, overwriting any previous entry for the same key.
func (c *InMemorySnapshotCache) Put(_ context.Context, snapshot reference.Snapshot) error {
	if snapshot.CachedAt.IsZero() {
		snapshot.CachedAt = time.Now().UTC()
	}
	c.entries.Store(cacheKey(snapshot.EntityType, snapshot.EntityID), snapshot)
	c.logger.Debug("cached snapshot",
		zap.String("entity_type", string(snapshot.EntityType)),
		zap.String("entity_id", snapshot.EntityID))
	return nil
}

// Evict removes the entry for an entity. Evicting an absent key is a no-op.
func (c *InMemorySnapshotCache) Evict(_ context.Context, entityType reference.EntityType, id string) error {
	c.entries.Delete(cacheKey(entityType, id))
	c.logger.Debug("evicted snapshot",
		zap.String("entity_type", string(entityType)),
		zap.String("entity_id", id))
	return nil
}

// InvalidateAll removes every entry.
func (c *InMemorySnapshotCache) InvalidateAll(_ context.Context) error {
	var removed int
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		removed++
		return true
	})
	c.logger.Info("invalidated snapshot cache", zap.Int("removed", removed))
	return nil
}

// Close releases any resources held by the cache.
func (c *InMemorySnapshotCache) Close() error {
	return nil
}

// Stats returns hit/miss counters and the current entry count.
func (c *InMemorySnapshotCache) Stats() reference.CacheStats {
	return reference.CacheStats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Entries: c.Count(),
	}
}

// ResetStats resets the hit/miss counters.
func (c *InMemorySnapshotCache) ResetStats() {
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Count returns the number of entries in the cache.
func (c *InMemorySnapshotCache) Count() int {
	count := 0
	c.entries.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// Ensure InMemorySnapshotCache implements the cache contracts
var (
	_ reference.SnapshotCache = (*InMemorySnapshotCache)(nil)
	_ reference.StatsProvider = (*InMemorySnapshotCache)(nil)
)
