package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

const scanBatchSize = 200

// Cache is a JSON value cache on Redis. It satisfies the stats cache
// contract of the application layer.
type Cache struct {
	client *Client
	logger logging.Logger
}

// NewCache builds a cache on an established client.
func NewCache(client *Client, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cache{client: client, logger: logger.Named("cache")}
}

// Get loads and decodes a cached value. The boolean reports a hit.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Raw().Get(ctx, c.client.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, apperrors.Wrap(err, apperrors.ErrCodeCacheError, "cache read failed")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "cache value corrupt")
	}
	return true, nil
}

// Set encodes and stores a value. A zero TTL falls back to the client
// default.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "cache value not encodable")
	}
	if ttl <= 0 {
		ttl = c.client.DefaultTTL()
	}
	if err := c.client.Raw().Set(ctx, c.client.Key(key), raw, ttl).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeCacheError, "cache write failed")
	}
	return nil
}

// InvalidatePrefix deletes every key under the prefix using SCAN so a
// large keyspace never blocks the server.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	pattern := c.client.Key(prefix) + "*"
	iter := c.client.Raw().Scan(ctx, 0, pattern, scanBatchSize).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatchSize {
			if err := c.client.Raw().Del(ctx, batch...).Err(); err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeCacheError, "cache invalidation failed")
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeCacheError, "cache scan failed")
	}
	if len(batch) > 0 {
		if err := c.client.Raw().Del(ctx, batch...).Err(); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeCacheError, "cache invalidation failed")
		}
	}
	return nil
}
