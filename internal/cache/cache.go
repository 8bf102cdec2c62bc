// Package cache serves previously computed search results with a short-lived
// primary tier and a long-lived stale tier used when the live path fails.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pricewatch/internal/domain"
)

const (
	primaryTTL = 5 * time.Minute
	staleTTL   = time.Hour
)

// RedisCache stores search results in Redis under a primary key and a
// longer-lived stale key, both written together. Cache errors are absorbed:
// a broken cache degrades to a miss, never to a failed read.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisCache(addr string, logger *zap.Logger) *RedisCache {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisCache{client: rdb, logger: logger}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func keyFor(query string) string {
	return "search:" + strings.ToLower(strings.TrimSpace(query))
}

func (c *RedisCache) lookup(ctx context.Context, key string) ([]domain.Product, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	var products []domain.Product
	if err := json.Unmarshal([]byte(val), &products); err != nil {
		c.logger.Warn("corrupt cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return products, true
}

// Get returns the primary entry for the query, if any.
func (c *RedisCache) Get(ctx context.Context, query string) ([]domain.Product, bool) {
	return c.lookup(ctx, keyFor(query))
}

// GetStale returns the long-lived fallback entry for the query, if any.
func (c *RedisCache) GetStale(ctx context.Context, query string) ([]domain.Product, bool) {
	return c.lookup(ctx, keyFor(query)+":stale")
}

// Put writes both tiers for the query.
func (c *RedisCache) Put(ctx context.Context, query string, products []domain.Product) {
	payload, err := json.Marshal(products)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("query", query), zap.Error(err))
		return
	}
	key := keyFor(query)
	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, payload, primaryTTL)
	pipe.Set(ctx, key+":stale", payload, staleTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
