package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/irfndi/crossover-go/internal/cache"
)

var startTime = time.Now()

// HealthCheckFunc probes one dependency.
type HealthCheckFunc func(ctx context.Context) error

// BreakerStatusProvider reports circuit breaker states by name.
type BreakerStatusProvider interface {
	CircuitBreakerStatus() map[string]string
}

// CacheStatsProvider reports price series cache counters.
type CacheStatsProvider interface {
	GetStats() cache.CacheStats
}

type HealthHandler struct {
	version  string
	checks   map[string]HealthCheckFunc
	required map[string]bool
	breakers BreakerStatusProvider
	cache    CacheStatsProvider
	timeout  time.Duration
}

type MemoryStats struct {
	TotalMB     uint64  `json:"total_mb"`
	UsedMB      uint64  `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

type CacheSummary struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	HitRate float64 `json:"hit_rate"`
}

type HealthResponse struct {
	Status          string            `json:"status"`
	Timestamp       time.Time         `json:"timestamp"`
	Version         string            `json:"version"`
	Uptime          string            `json:"uptime"`
	Services        map[string]string `json:"services"`
	CircuitBreakers map[string]string `json:"circuit_breakers,omitempty"`
	Cache           *CacheSummary     `json:"cache,omitempty"`
	Memory          *MemoryStats      `json:"memory,omitempty"`
}

func NewHealthHandler(version string, breakers BreakerStatusProvider, cacheStats CacheStatsProvider) *HealthHandler {
	return &HealthHandler{
		version:  version,
		checks:   make(map[string]HealthCheckFunc),
		required: make(map[string]bool),
		breakers: breakers,
		cache:    cacheStats,
		timeout:  5 * time.Second,
	}
}

// AddCheck registers a dependency probe. A failing required check makes the
// service not ready; optional ones only degrade /health.
func (h *HealthHandler) AddCheck(name string, required bool, check HealthCheckFunc) {
	h.checks[name] = check
	h.required[name] = required
}

func (h *HealthHandler) runChecks(ctx context.Context) (map[string]string, bool, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy, ready := true, true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			healthy = false
			if h.required[name] {
				ready = false
			}
			continue
		}
		results[name] = "healthy"
	}
	return results, healthy, ready
}

// HealthCheck reports every dependency plus process statistics.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	results, healthy, ready := h.runChecks(c.Request.Context())

	status := "healthy"
	code := http.StatusOK
	switch {
	case !ready:
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	case !healthy:
		status = "degraded"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Services:  results,
	}
	if h.breakers != nil {
		response.CircuitBreakers = h.breakers.CircuitBreakerStatus()
	}
	if h.cache != nil {
		stats := h.cache.GetStats()
		response.Cache = &CacheSummary{Hits: stats.Hits, Misses: stats.Misses, Sets: stats.Sets, HitRate: stats.HitRate()}
	}
	if vm, err := mem.VirtualMemoryWithContext(c.Request.Context()); err == nil {
		response.Memory = &MemoryStats{
			TotalMB:     vm.Total / 1024 / 1024,
			UsedMB:      vm.Used / 1024 / 1024,
			UsedPercent: vm.UsedPercent,
		}
	}

	c.JSON(code, response)
}

// ReadinessCheck fails when any required dependency is down.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	results, _, ready := h.runChecks(c.Request.Context())

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ready": ready, "services": results})
}

// LivenessCheck always succeeds while the process can serve requests.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "uptime": time.Since(startTime).Round(time.Second).String()})
}
