// Package rediscache decorates the product store with a Redis read-through
// cache. Product metadata is write-once, so a cached entry can never be
// stale; the TTL only bounds memory.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
)

type ProductCache struct {
	next   store.ProductStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewProductCache(next store.ProductStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *ProductCache {
	return &ProductCache{next: next, client: client, ttl: ttl, logger: logger}
}

// Create writes through and primes the cache; a cache failure never fails
// the write.
func (c *ProductCache) Create(ctx context.Context, product *models.Product) error {
	if err := c.next.Create(ctx, product); err != nil {
		return err
	}
	c.prime(ctx, product)
	return nil
}

func (c *ProductCache) FindByID(ctx context.Context, productID uint64) (*models.Product, error) {
	raw, err := c.client.Get(ctx, cacheKey(productID)).Bytes()
	if err == nil {
		var product models.Product
		if unmarshalErr := json.Unmarshal(raw, &product); unmarshalErr == nil {
			return &product, nil
		}
		// Unreadable entry: fall through and repopulate from the store.
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "product cache read failed",
			"product_id", productID,
			"error", err.Error(),
		)
	}

	product, err := c.next.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	c.prime(ctx, product)
	return product, nil
}

func (c *ProductCache) Count(ctx context.Context) (uint64, error) {
	// The counter moves on every create; caching it would race the store.
	return c.next.Count(ctx)
}

func (c *ProductCache) prime(ctx context.Context, product *models.Product) {
	raw, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(product.ID), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "product cache write failed",
			"product_id", product.ID,
			"error", err.Error(),
		)
	}
}

func cacheKey(productID uint64) string {
	return fmt.Sprintf("provenance:product:%d", productID)
}
