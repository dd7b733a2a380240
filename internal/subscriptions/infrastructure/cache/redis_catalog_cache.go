package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "estatecrm:catalog:"

	// DefaultTTL bounds how long a catalog change can take to show up.
	DefaultTTL = 5 * time.Minute
)

// RedisCatalogCache is a read-through cache in front of a CatalogRepository.
// Redis failures are logged and the call falls through to the repository.
// Misses (nil tariffs) are not cached.
type RedisCatalogCache struct {
	inner  domain.CatalogRepository
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCatalogCache wraps inner with a Redis cache.
func NewRedisCatalogCache(inner domain.CatalogRepository, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RedisCatalogCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCatalogCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

// FindTariff returns a tariff by id.
func (c *RedisCatalogCache) FindTariff(ctx context.Context, id uuid.UUID) (*domain.Tariff, error) {
	return readThrough(ctx, c, "tariff:"+id.String(), func() (*domain.Tariff, error) {
		return c.inner.FindTariff(ctx, id)
	})
}

// FindTariffByCode returns a tariff by code.
func (c *RedisCatalogCache) FindTariffByCode(ctx context.Context, code string) (*domain.Tariff, error) {
	return readThrough(ctx, c, "tariff_code:"+code, func() (*domain.Tariff, error) {
		return c.inner.FindTariffByCode(ctx, code)
	})
}

// ListActiveTariffs returns the active tariffs.
func (c *RedisCatalogCache) ListActiveTariffs(ctx context.Context) ([]domain.Tariff, error) {
	out, err := readThrough(ctx, c, "active", func() (*[]domain.Tariff, error) {
		tariffs, err := c.inner.ListActiveTariffs(ctx)
		if err != nil {
			return nil, err
		}
		return &tariffs, nil
	})
	if err != nil || out == nil {
		return nil, err
	}
	return *out, nil
}

// FindPriceOverrides returns the overrides for a tariff in a location.
func (c *RedisCatalogCache) FindPriceOverrides(ctx context.Context, tariffID, locationID uuid.UUID) ([]domain.PriceOverride, error) {
	key := fmt.Sprintf("prices:%s:%s", tariffID, locationID)
	out, err := readThrough(ctx, c, key, func() (*[]domain.PriceOverride, error) {
		overrides, err := c.inner.FindPriceOverrides(ctx, tariffID, locationID)
		if err != nil {
			return nil, err
		}
		return &overrides, nil
	})
	if err != nil || out == nil {
		return nil, err
	}
	return *out, nil
}

// Invalidate drops every cached catalog entry.
func (c *RedisCatalogCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan catalog cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func readThrough[T any](ctx context.Context, c *RedisCatalogCache, key string, load func() (*T, error)) (*T, error) {
	key = keyPrefix + key

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached T
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			return &cached, nil
		}
		c.logger.Warn("discarding unreadable catalog cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("catalog cache read failed", "key", key, "error", err)
	}

	value, err := load()
	if err != nil || value == nil {
		return value, err
	}

	if data, err := json.Marshal(value); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog cache write failed", "key", key, "error", err)
		}
	}
	return value, nil
}

var _ domain.CatalogRepository = (*RedisCatalogCache)(nil)
