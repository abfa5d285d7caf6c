// Package redis provides the Redis client, the stats cache and the
// distributed lock used to keep background loops single-instance.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexohr/psicorisco/internal/config"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// Client wraps go-redis with the configured key prefix and default TTL.
type Client struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    logging.Logger
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeCacheError, "redis unreachable")
	}

	logger.Info("connected to redis", logging.String("addr", cfg.Addr))

	return &Client{
		rdb:       rdb,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.DefaultTTL,
		logger:    logger,
	}, nil
}

// Raw exposes the underlying go-redis client.
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

// DefaultTTL returns the configured default expiry.
func (c *Client) DefaultTTL() time.Duration {
	return c.ttl
}

// Key namespaces a key with the configured prefix.
func (c *Client) Key(parts ...string) string {
	key := c.keyPrefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Ping verifies the connection for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeCacheError, "redis ping failed")
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
