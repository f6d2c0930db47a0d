// Package redis provides the Redis-backed cache repository
package redis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/cache"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// CacheRepository implements the cache repository port on the shared
// Redis client. Rate limiting and ad hoc counters go through here.
type CacheRepository struct {
	client *cache.RedisClient
	logger *zap.Logger
}

// NewCacheRepository creates a new cache repository
func NewCacheRepository(client *cache.RedisClient, logger *zap.Logger) outbound.CacheRepository {
	return &CacheRepository{
		client: client,
		logger: logger,
	}
}

// Get retrieves a value from cache
func (r *CacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key)
	if err != nil {
		if err != cache.ErrKeyNotFound {
			r.logger.Debug("Cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, err
	}
	return data, nil
}

// Set stores a value in cache with TTL
func (r *CacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl); err != nil {
		r.logger.Error("Cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Delete removes a value from cache
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Delete(ctx, key); err != nil {
		r.logger.Error("Cache delete failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Exists checks if a key exists in cache
func (r *CacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, key)
	if err != nil {
		r.logger.Error("Cache exists check failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return count > 0, nil
}

// Increment atomically increments a counter with an expiry window
func (r *CacheRepository) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return r.client.Increment(ctx, key, ttl)
}
