package reference

import "context"

// SnapshotCache is the local keyed store mapping (entityType, entityId) to the
// latest known snapshot. Entries have no TTL: staleness is bounded by event
// propagation, not elapsed time. Implementations must make operations on one
// key atomic with respect to concurrent callers; the last completed write
// wins. A nil snapshot with a nil error is a cache miss.
type SnapshotCache interface {
	Get(ctx context.Context, entityType EntityType, id string) (*Snapshot, error)
	Put(ctx context.Context, snapshot Snapshot) error
	Evict(ctx context.Context, entityType EntityType, id string) error
	InvalidateAll(ctx context.Context) error
	Close() error
}

// CacheStats is a point-in-time view of cache effectiveness.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// StatsProvider is implemented by caches that track hit/miss counters.
type StatsProvider interface {
	Stats() CacheStats
}
