// Package handler contains the gin HTTP handlers for the reference cache's
// API surface.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/application/refdata"
	"github.com/flightdeck/backend/internal/domain/reference"
	"github.com/flightdeck/backend/internal/domain/shared"
	"github.com/flightdeck/backend/internal/interfaces/http/dto"
)

// CacheAdmin is the subset of cache operations exposed over the admin API.
type CacheAdmin interface {
	Evict(ctx context.Context, entityType reference.EntityType, id string) error
	InvalidateAll(ctx context.Context) error
}

// ReferenceHandler serves entity lookups and cache administration.
type ReferenceHandler struct {
	resolver *refdata.Resolver
	admin    CacheAdmin
	stats    reference.StatsProvider
	logger   *zap.Logger
}

// NewReferenceHandler creates a new ReferenceHandler
func NewReferenceHandler(resolver *refdata.Resolver, admin CacheAdmin, stats reference.StatsProvider, logger *zap.Logger) *ReferenceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceHandler{
		resolver: resolver,
		admin:    admin,
		stats:    stats,
		logger:   logger,
	}
}

// RegisterRoutes registers the handler's routes on the API group.
func (h *ReferenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/reference/:entityType/:id", h.GetEntity)
	rg.POST("/cache/invalidate", h.InvalidateCache)
	rg.GET("/cache/stats", h.GetStats)
}

// GetEntity returns the snapshot for one entity, fetching through to the
// registry on a cache miss.
func (h *ReferenceHandler) GetEntity(c *gin.Context) {
	entityType, err := reference.ParseEntityType(c.Param("entityType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeValidation, "unknown entity type"))
		return
	}
	id := c.Param("id")

	snapshot, err := h.resolver.Resolve(c.Request.Context(), entityType, id)
	if err != nil {
		h.renderResolveError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(snapshot))
}

func (h *ReferenceHandler) renderResolveError(c *gin.Context, err error) {
	var code string
	switch {
	case errors.Is(err, shared.ErrNotFound):
		code = dto.ErrCodeNotFound
	case errors.Is(err, shared.ErrAuthFailure):
		code = dto.ErrCodeUpstreamAuth
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		code = dto.ErrCodeUpstreamUnavailable
	default:
		h.logger.Error("resolve failed", zap.Error(err))
		code = dto.ErrCodeInternal
	}
	c.JSON(dto.HTTPStatusForCode(code), dto.NewErrorResponse(code, err.Error()))
}

// InvalidateRequest is the body of POST /cache/invalidate. With no body (or
// an empty one) the whole cache is flushed; with both fields set only one
// entry is evicted.
type InvalidateRequest struct {
	EntityType string `json:"entityType" binding:"required_with=EntityID"`
	EntityID   string `json:"entityId" binding:"required_with=EntityType"`
}

// InvalidateCache evicts one entry or flushes the whole cache.
func (h *ReferenceHandler) InvalidateCache(c *gin.Context) {
	var req InvalidateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeBadRequest, err.Error()))
			return
		}
	}

	ctx := c.Request.Context()
	if req.EntityType == "" && req.EntityID == "" {
		if err := h.admin.InvalidateAll(ctx); err != nil {
			c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(dto.ErrCodeInternal, err.Error()))
			return
		}
		h.logger.Info("cache flushed via admin API")
		c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"invalidated": "all"}))
		return
	}

	entityType, err := reference.ParseEntityType(req.EntityType)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeValidation, "unknown entity type"))
		return
	}
	if err := h.admin.Evict(ctx, entityType, req.EntityID); err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(dto.ErrCodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{
		"invalidated": gin.H{"entityType": string(entityType), "entityId": req.EntityID},
	}))
}

// StatsResponse is the body of GET /cache/stats.
type StatsResponse struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// GetStats returns cache hit/miss counters and the entry count.
func (h *ReferenceHandler) GetStats(c *gin.Context) {
	stats := h.stats.Stats()
	c.JSON(http.StatusOK, dto.NewSuccessResponse(StatsResponse{
		Hits:    stats.Hits,
		Misses:  stats.Misses,
		Entries: stats.Entries,
	}))
}
