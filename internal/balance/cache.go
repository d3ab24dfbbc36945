package balance

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "tb"

// Cache holds rendered report pages in Redis. A nil Cache (or one without a
// client) degrades to calling the loader every time, so callers never branch
// on whether caching is configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// PageKey composes the cache key for one report page. The window fingerprint
// is part of the key so a rematerialized snapshot never collides with pages
// cached for a previous window.
func PageKey(tenant, fingerprint string, f Filters, page, pageSize int) string {
	return strings.Join([]string{
		cacheKeyPrefix, tenant, fingerprint, f.Key(),
		strconv.Itoa(page), strconv.Itoa(pageSize),
	}, ":")
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// InvalidateTenant deletes every cached page for one tenant. Missing keys
// are not an error; an empty scan is the common case right after startup.
func (c *Cache) InvalidateTenant(ctx context.Context, tenantCode string) error {
	if c == nil || c.client == nil {
		return nil
	}
	pattern := cacheKeyPrefix + ":" + tenantCode + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
