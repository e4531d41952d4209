package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/crossover-go/internal/cache"
)

type staticBreakers map[string]string

func (s staticBreakers) CircuitBreakerStatus() map[string]string { return s }

type staticCacheStats cache.CacheStats

func (s staticCacheStats) GetStats() cache.CacheStats { return cache.CacheStats(s) }

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func setupHealthRouter(h *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
	return router
}

func TestHealthHandler_AllHealthy(t *testing.T) {
	h := NewHealthHandler("1.2.3", staticBreakers{"market_data_fetch": "closed"}, staticCacheStats{Hits: 3, Misses: 1, Sets: 1})
	h.AddCheck("database", true, ok)
	h.AddCheck("redis", false, ok)

	w := get(setupHealthRouter(h), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, map[string]string{"database": "healthy", "redis": "healthy"}, resp.Services)
	assert.Equal(t, "closed", resp.CircuitBreakers["market_data_fetch"])
	require.NotNil(t, resp.Cache)
	assert.InDelta(t, 75.0, resp.Cache.HitRate, 1e-9)
}

func TestHealthHandler_OptionalFailureDegrades(t *testing.T) {
	h := NewHealthHandler("dev", nil, nil)
	h.AddCheck("database", true, ok)
	h.AddCheck("redis", false, down)
	router := setupHealthRouter(h)

	w := get(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy: connection refused", resp.Services["redis"])
	assert.Nil(t, resp.Cache)

	assert.Equal(t, http.StatusOK, get(router, "/ready").Code)
}

func TestHealthHandler_RequiredFailureIsUnhealthy(t *testing.T) {
	h := NewHealthHandler("dev", nil, nil)
	h.AddCheck("ccxt", true, down)
	router := setupHealthRouter(h)

	w := get(router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)

	w = get(router, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"ready":false`)
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler("dev", nil, nil)
	h.AddCheck("ccxt", true, down)

	w := get(setupHealthRouter(h), "/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}
