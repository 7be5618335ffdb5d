package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightdeck/backend/internal/domain/reference"
)

func TestInMemorySnapshotCache_GetPut(t *testing.T) {
	cache := NewInMemorySnapshotCache()
	defer cache.Close()
	ctx := context.Background()

	t.Run("miss returns nil snapshot and nil error", func(t *testing.T) {
		snapshot, err := cache.Get(ctx, reference.EntityAirline, "BA")
		require.NoError(t, err)
		assert.Nil(t, snapshot)
	})

	t.Run("put then get returns the snapshot", func(t *testing.T) {
		err := cache.Put(ctx, reference.Snapshot{
			EntityType: reference.EntityAirline,
			EntityID:   "BA",
			Data:       json.RawMessage(`{"id":"BA","name":"British Airways"}`),
		})
		require.NoError(t, err)

		snapshot, err := cache.Get(ctx, reference.EntityAirline, "BA")
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.Equal(t, reference.EntityAirline, snapshot.EntityType)
		assert.Equal(t, "BA", snapshot.EntityID)
		assert.JSONEq(t, `{"id":"BA","name":"British Airways"}`, string(snapshot.Data))
		assert.False(t, snapshot.CachedAt.IsZero())
	})

	t.Run("put overwrites previous entry for same key", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, reference.Snapshot{
			EntityType: reference.EntityAirline,
			EntityID:   "BA",
			Data:       json.RawMessage(`{"id":"BA","name":"Renamed"}`),
		}))

		snapshot, err := cache.Get(ctx, reference.EntityAirline, "BA")
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.JSONEq(t, `{"id":"BA","name":"Renamed"}`, string(snapshot.Data))
		assert.Equal(t, 1, cache.Count())
	})

	t.Run("same id under different entity types are distinct", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, reference.Snapshot{
			EntityType: reference.EntityAirport,
			EntityID:   "BA",
			Data:       json.RawMessage(`{"id":"BA","name":"Some Airport"}`),
		}))

		airline, err := cache.Get(ctx, reference.EntityAirline, "BA")
		require.NoError(t, err)
		require.NotNil(t, airline)
		assert.JSONEq(t, `{"id":"BA","name":"Renamed"}`, string(airline.Data))

		airport, err := cache.Get(ctx, reference.EntityAirport, "BA")
		require.NoError(t, err)
		require.NotNil(t, airport)
		assert.JSONEq(t, `{"id":"BA","name":"Some Airport"}`, string(airport.Data))
	})
}

func TestInMemorySnapshotCache_Evict(t *testing.T) {
	cache := NewInMemorySnapshotCache()
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, reference.Snapshot{
		EntityType: reference.EntityAircraft,
		EntityID:   "738",
		Data:       json.RawMessage(`{"id":"738"}`),
	}))

	t.Run("evict removes the entry", func(t *testing.T) {
		require.NoError(t, cache.Evict(ctx, reference.EntityAircraft, "738"))

		snapshot, err := cache.Get(ctx, reference.EntityAircraft, "738")
		require.NoError(t, err)
		assert.Nil(t, snapshot)
	})

	t.Run("evicting an absent key is a no-op", func(t *testing.T) {
		assert.NoError(t, cache.Evict(ctx, reference.EntityAircraft, "never-cached"))
	})
}

func TestInMemorySnapshotCache_InvalidateAll(t *testing.T) {
	cache := NewInMemorySnapshotCache()
	defer cache.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, cache.Put(ctx, reference.Snapshot{
			EntityType: reference.EntityAirport,
			EntityID:   fmt.Sprintf("AP%d", i),
			Data:       json.RawMessage(`{}`),
		}))
	}
	require.Equal(t, 5, cache.Count())

	require.NoError(t, cache.InvalidateAll(ctx))
	assert.Equal(t, 0, cache.Count())
}

func TestInMemorySnapshotCache_Stats(t *testing.T) {
	cache := NewInMemorySnapshotCache()
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, reference.Snapshot{
		EntityType: reference.EntityAirline,
		EntityID:   "LH",
		Data:       json.RawMessage(`{"id":"LH"}`),
	}))

	_, _ = cache.Get(ctx, reference.EntityAirline, "LH")      // hit
	_, _ = cache.Get(ctx, reference.EntityAirline, "LH")      // hit
	_, _ = cache.Get(ctx, reference.EntityAirline, "missing") // miss

	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)

	cache.ResetStats()
	stats = cache.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestInMemorySnapshotCache_ConcurrentAccess(t *testing.T) {
	cache := NewInMemorySnapshotCache()
	defer cache.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("FL%d", n%10)
			_ = cache.Put(ctx, reference.Snapshot{
				EntityType: reference.EntityFlight,
				EntityID:   id,
				Data:       json.RawMessage(`{}`),
			})
			_, _ = cache.Get(ctx, reference.EntityFlight, id)
			if n%3 == 0 {
				_ = cache.Evict(ctx, reference.EntityFlight, id)
			}
		}(i)
	}
	wg.Wait()

	// No assertion on exact contents: this test exists to trip the race
	// detector on unsynchronized access.
	assert.LessOrEqual(t, cache.Count(), 10)
}
