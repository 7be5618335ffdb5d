package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/application/refdata"
	"github.com/flightdeck/backend/internal/domain/reference"
	"github.com/flightdeck/backend/internal/domain/shared"
	"github.com/flightdeck/backend/internal/infrastructure/cache"
	"github.com/flightdeck/backend/internal/interfaces/http/router"
)

type stubFetcher struct {
	response json.RawMessage
	err      error
}

func (f *stubFetcher) FetchEntity(context.Context, reference.EntityType, string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func setupTestServer(t *testing.T, fetcher refdata.Fetcher) (*gin.Engine, *cache.InMemorySnapshotCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	snapshots := cache.NewInMemorySnapshotCache()
	t.Cleanup(func() { snapshots.Close() })

	resolver := refdata.NewResolver(snapshots, fetcher, zap.NewNop())
	h := NewReferenceHandler(resolver, snapshots, snapshots, zap.NewNop())

	engine := gin.New()
	router.NewRouter(engine).Register(h).Setup()
	NewHealthHandler().Register(engine)
	return engine, snapshots
}

func performRequest(engine *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestReferenceHandler_GetEntity(t *testing.T) {
	t.Run("cached entity is returned", func(t *testing.T) {
		engine, snapshots := setupTestServer(t, &stubFetcher{})
		require.NoError(t, snapshots.Put(context.Background(), reference.Snapshot{
			EntityType: reference.EntityAirline,
			EntityID:   "BA",
			Data:       json.RawMessage(`{"id":"BA","name":"British Airways"}`),
		}))

		w := performRequest(engine, http.MethodGet, "/api/v1/reference/airline/BA", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool               `json:"success"`
			Data    reference.Snapshot `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "BA", resp.Data.EntityID)
	})

	t.Run("miss fetches through", func(t *testing.T) {
		engine, _ := setupTestServer(t, &stubFetcher{response: json.RawMessage(`{"id":"LHR"}`)})

		w := performRequest(engine, http.MethodGet, "/api/v1/reference/AIRPORT/LHR", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown entity type is 400", func(t *testing.T) {
		engine, _ := setupTestServer(t, &stubFetcher{})

		w := performRequest(engine, http.MethodGet, "/api/v1/reference/spaceship/x", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not found is 404", func(t *testing.T) {
		engine, _ := setupTestServer(t, &stubFetcher{err: fmt.Errorf("%w: no such entity", shared.ErrNotFound)})

		w := performRequest(engine, http.MethodGet, "/api/v1/reference/airline/ZZ", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("registry outage is 502", func(t *testing.T) {
		engine, _ := setupTestServer(t, &stubFetcher{err: fmt.Errorf("%w: connection refused", shared.ErrUpstreamUnavailable)})

		w := performRequest(engine, http.MethodGet, "/api/v1/reference/airport/CDG", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("credential failure is 503", func(t *testing.T) {
		engine, _ := setupTestServer(t, &stubFetcher{err: fmt.Errorf("%w: login rejected", shared.ErrAuthFailure)})

		w := performRequest(engine, http.MethodGet, "/api/v1/reference/aircraft/738", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestReferenceHandler_InvalidateCache(t *testing.T) {
	seed := func(t *testing.T, snapshots *cache.InMemorySnapshotCache) {
		t.Helper()
		for _, id := range []string{"BA", "LH"} {
			require.NoError(t, snapshots.Put(context.Background(), reference.Snapshot{
				EntityType: reference.EntityAirline,
				EntityID:   id,
				Data:       json.RawMessage(`{}`),
			}))
		}
	}

	t.Run("empty body flushes everything", func(t *testing.T) {
		engine, snapshots := setupTestServer(t, &stubFetcher{})
		seed(t, snapshots)

		w := performRequest(engine, http.MethodPost, "/api/v1/cache/invalidate", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, snapshots.Count())
	})

	t.Run("targeted eviction removes one entry", func(t *testing.T) {
		engine, snapshots := setupTestServer(t, &stubFetcher{})
		seed(t, snapshots)

		body := []byte(`{"entityType":"AIRLINE","entityId":"BA"}`)
		w := performRequest(engine, http.MethodPost, "/api/v1/cache/invalidate", body)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, snapshots.Count())
	})

	t.Run("entityType without entityId is 400", func(t *testing.T) {
		engine, _ := setupTestServer(t, &stubFetcher{})

		body := []byte(`{"entityType":"AIRLINE"}`)
		w := performRequest(engine, http.MethodPost, "/api/v1/cache/invalidate", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown entity type is 400", func(t *testing.T) {
		engine, _ := setupTestServer(t, &stubFetcher{})

		body := []byte(`{"entityType":"SPACESHIP","entityId":"x"}`)
		w := performRequest(engine, http.MethodPost, "/api/v1/cache/invalidate", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReferenceHandler_GetStats(t *testing.T) {
	engine, snapshots := setupTestServer(t, &stubFetcher{})
	ctx := context.Background()

	require.NoError(t, snapshots.Put(ctx, reference.Snapshot{
		EntityType: reference.EntityAirport,
		EntityID:   "LHR",
		Data:       json.RawMessage(`{}`),
	}))
	_, _ = snapshots.Get(ctx, reference.EntityAirport, "LHR")
	_, _ = snapshots.Get(ctx, reference.EntityAirport, "nope")

	w := performRequest(engine, http.MethodGet, "/api/v1/cache/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Data.Hits)
	assert.Equal(t, int64(1), resp.Data.Misses)
	assert.Equal(t, 1, resp.Data.Entries)
}

func TestHealthHandler(t *testing.T) {
	engine, _ := setupTestServer(t, &stubFetcher{})

	w := performRequest(engine, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
