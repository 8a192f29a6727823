package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"propertyhub/internal/caching"
	"propertyhub/pkg/database"
	"propertyhub/pkg/logger"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	store   *database.Store
	cache   caching.CacheService
	version string
	clock   clockwork.Clock
	started time.Time
	log     *zap.Logger
}

// NewHealthHandlers creates a new health handlers instance. cache may be nil.
func NewHealthHandlers(store *database.Store, cache caching.CacheService, version string, clock clockwork.Clock, log *zap.Logger) *HealthHandlers {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HealthHandlers{
		store:   store,
		cache:   cache,
		version: version,
		clock:   clock,
		started: clock.Now(),
		log:     log,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
	Driver    string            `json:"driver"`
}

// HealthCheck godoc
// @Summary  Liveness with a per dependency breakdown
// @Tags     health
// @Produce  json
// @Success  200  {object}  HealthStatus
// @Success  206  {object}  HealthStatus
// @Router   /health [get]
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	now := h.clock.Now()
	health := &HealthStatus{
		Status:    statusHealthy,
		Timestamp: now.UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Uptime:    now.Sub(h.started).Truncate(time.Second).String(),
		Version:   h.version,
		Driver:    h.store.Driver(),
	}

	if err := h.checkDatabase(ctx); err != nil {
		logger.FromContext(ctx, h.log).Warn("Database health check failed", zap.Error(err))
		health.Services["database"] = statusUnhealthy
		health.Status = statusDegraded
	} else {
		health.Services["database"] = statusHealthy
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			logger.FromContext(ctx, h.log).Warn("Cache health check failed", zap.Error(err))
			health.Services["cache"] = statusUnhealthy
			health.Status = statusDegraded
		} else {
			health.Services["cache"] = statusHealthy
		}
	}

	statusCode := http.StatusOK
	if health.Status == statusDegraded {
		statusCode = http.StatusPartialContent
	}
	return c.JSON(statusCode, health)
}

// checkDatabase verifies database connectivity
func (h *HealthHandlers) checkDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	db, err := h.store.Conn()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// ReadinessCheck godoc
// @Summary  Readiness, the store must answer
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Failure  503  {object}  map[string]string
// @Router   /health/ready [get]
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	// the cache is optional; only the store gates readiness
	if err := h.checkDatabase(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "Critical services unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
	})
}
