package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/crossover-go/internal/config"
)

// Retrier runs an operation under a named retry policy.
type Retrier interface {
	ExecuteWithRetry(ctx context.Context, operationName string, operation func() error) error
}

type RedisClient struct {
	Client *redis.Client
	logger *logrus.Logger
}

// NewRedisConnectionWithRetry connects to Redis, retrying the initial ping
// under the "redis_operation" policy.
func NewRedisConnectionWithRetry(ctx context.Context, cfg config.RedisConfig, retrier Retrier, logger *logrus.Logger) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := retrier.ExecuteWithRetry(ctx, "redis_operation", func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis")

	return &RedisClient{Client: rdb, logger: logger}, nil
}

func (r *RedisClient) Close() {
	if r.Client != nil {
		if err := r.Client.Close(); err != nil {
			r.logger.WithError(err).Warn("Error closing Redis connection")
			return
		}
		r.logger.Info("Redis connection closed")
	}
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
