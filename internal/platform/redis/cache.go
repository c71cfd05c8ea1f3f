// Package redis provides a small JSON cache on top of a Redis server. It is
// used to memoize classroom analytics rollups, which are expensive to
// compute and tolerate short staleness. The cache is strictly optional: a
// nil *Cache is safe to call and behaves as a permanent miss.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache errors.
var (
	// ErrCacheMiss is returned when the key does not exist.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheConnection is returned when the Redis server is unreachable.
	ErrCacheConnection = errors.New("cache connection failed")
)

// Cache stores JSON-serialized values with a fixed TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache connects to the Redis server at the given URL and verifies the
// connection. TTL applies to every Set.
func NewCache(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "rollup_cache")),
	}, nil
}

// Get retrieves and deserializes the value at key into dest.
// Returns ErrCacheMiss if the key does not exist or the cache is disabled.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if c == nil {
		return ErrCacheMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Set serializes value as JSON and stores it under key with the cache TTL.
// A nil cache silently discards the write.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate removes the given keys. Missing keys are not an error.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close closes the underlying Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
