// Package cache stores serialized map feature collections so repeated map
// loads do not rebuild them from the database.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stwalsh4118/parcela/internal/config"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/metrics"
)

// Keys of the cached collections. Every key is dropped on any lot change.
const (
	KeyLotFeatures = "parcela:map:lots"
	KeyLotLabels   = "parcela:map:lot-labels"
)

// AllKeys lists every key written by the map service.
var AllKeys = []string{KeyLotFeatures, KeyLotLabels}

// FeatureCache is a byte cache with whole-key invalidation.
type FeatureCache interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context, keys ...string) error
	Close() error
}

// RedisCache is a FeatureCache backed by Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisCache{client: client, ttl: cfg.TTL, log: log}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.FeatureCacheTotal.WithLabelValues(metrics.CacheMiss).Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.FeatureCacheTotal.WithLabelValues(metrics.CacheError).Inc()
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	metrics.FeatureCacheTotal.WithLabelValues(metrics.CacheHit).Inc()
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping reports whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	metrics.FeatureCacheTotal.WithLabelValues(metrics.CacheMiss).Inc()
	return nil, false, nil
}

func (NoopCache) Set(ctx context.Context, key string, value []byte) error    { return nil }
func (NoopCache) Invalidate(ctx context.Context, keys ...string) error       { return nil }
func (NoopCache) Close() error                                              { return nil }

// New returns a Redis cache, or a NoopCache when Redis is not configured or
// cannot be reached. Caching is an optimisation, so startup never fails on it.
func New(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) FeatureCache {
	if cfg.Addr == "" {
		log.Info("Feature cache disabled", nil)
		return NoopCache{}
	}
	c, err := NewRedisCache(ctx, cfg, log)
	if err != nil {
		log.Warn("Redis unavailable, feature cache disabled", map[string]interface{}{
			"addr":  cfg.Addr,
			"error": err.Error(),
		})
		return NoopCache{}
	}
	log.Info("Connected to Redis feature cache", map[string]interface{}{"addr": cfg.Addr})
	return c
}
