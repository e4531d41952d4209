package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/crossover-go/internal/models"
)

// DefaultSeriesTTL is how long fetched price history stays cached.
const DefaultSeriesTTL = 5 * time.Minute

// PriceSeriesCacheEntry represents a cached series with metadata
type PriceSeriesCacheEntry struct {
	Points    []models.PricePoint `json:"points"`
	CachedAt  time.Time           `json:"cached_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

// HitRate returns hits as a percentage of lookups.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// RedisPriceSeriesCache stores fetched price series in Redis.
type RedisPriceSeriesCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	logger *logrus.Logger

	mu    sync.RWMutex
	stats CacheStats
}

// NewRedisPriceSeriesCache creates a new Redis-based series cache. A
// non-positive ttl falls back to DefaultSeriesTTL.
func NewRedisPriceSeriesCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisPriceSeriesCache {
	if ttl <= 0 {
		ttl = DefaultSeriesTTL
	}
	return &RedisPriceSeriesCache{
		redis:  redisClient,
		ttl:    ttl,
		prefix: "price_series:",
		logger: logger,
	}
}

// Get returns the cached series for key. Redis or decoding failures count as misses.
func (c *RedisPriceSeriesCache) Get(ctx context.Context, key string) (models.PriceSeries, bool) {
	data, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		c.recordMiss()
		return models.PriceSeries{}, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Redis error reading price series")
		c.recordMiss()
		return models.PriceSeries{}, false
	}

	var entry PriceSeriesCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Error deserializing cached price series")
		c.recordMiss()
		return models.PriceSeries{}, false
	}

	series, err := models.NewPriceSeries(entry.Points)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cached price series failed validation")
		c.recordMiss()
		return models.PriceSeries{}, false
	}

	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	return series, true
}

// Set stores series under key with the cache TTL.
func (c *RedisPriceSeriesCache) Set(ctx context.Context, key string, series models.PriceSeries) error {
	now := time.Now()
	entry := PriceSeriesCacheEntry{
		Points:    series.Points(),
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("error serializing price series: %w", err)
	}

	if err := c.redis.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis error caching price series: %w", err)
	}

	c.mu.Lock()
	c.stats.Sets++
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"key":    key,
		"points": series.Len(),
		"ttl":    c.ttl,
	}).Debug("Cached price series")
	return nil
}

// Clear removes every cached series.
func (c *RedisPriceSeriesCache) Clear(ctx context.Context) error {
	var keys []string
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing cache: %w", err)
	}
	return nil
}

// GetStats returns current cache statistics
func (c *RedisPriceSeriesCache) GetStats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *RedisPriceSeriesCache) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}
