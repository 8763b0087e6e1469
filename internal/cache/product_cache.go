// Package cache holds the Redis-backed product cache and idempotency reservations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"eshop_back_end/internal/logger"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository"
)

const (
	ProductCacheTTL = 10 * time.Minute

	productKeyPrefix  = "product:"
	categoryKeyPrefix = "category:"
)

// ProductCache wraps a Catalog with a Redis read-through cache for single lookups.
// Cache failures are logged and fall through to the catalog.
type ProductCache struct {
	repository.Catalog
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

var _ repository.Catalog = (*ProductCache)(nil)

func NewProductCache(catalog repository.Catalog, client *redis.Client, ttl time.Duration, log *zap.Logger) *ProductCache {
	if ttl <= 0 {
		ttl = ProductCacheTTL
	}
	return &ProductCache{Catalog: catalog, client: client, ttl: ttl, log: logger.OrNop(log)}
}

func (c *ProductCache) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var p models.Product
	if c.get(ctx, productKeyPrefix+id, &p) {
		return p, nil
	}
	p, err := c.Catalog.GetProduct(ctx, id)
	if err != nil {
		return p, err
	}
	c.set(ctx, productKeyPrefix+id, p)
	return p, nil
}

func (c *ProductCache) GetCategory(ctx context.Context, id string) (models.Category, error) {
	var cat models.Category
	if c.get(ctx, categoryKeyPrefix+id, &cat) {
		return cat, nil
	}
	cat, err := c.Catalog.GetCategory(ctx, id)
	if err != nil {
		return cat, err
	}
	c.set(ctx, categoryKeyPrefix+id, cat)
	return cat, nil
}

// InvalidateProduct drops a cached product.
func (c *ProductCache) InvalidateProduct(ctx context.Context, id string) error {
	return c.client.Del(ctx, productKeyPrefix+id).Err()
}

// InvalidateCategory drops a cached category.
func (c *ProductCache) InvalidateCategory(ctx context.Context, id string) error {
	return c.client.Del(ctx, categoryKeyPrefix+id).Err()
}

func (c *ProductCache) get(ctx context.Context, key string, dst interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("product cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn("product cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *ProductCache) set(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("product cache write failed", zap.String("key", key), zap.Error(err))
	}
}
