package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// KeyMapSnapshot caches the live map payload: available couriers, active
// orders and active restaurants. Invalidated by every assignment and status
// write.
const KeyMapSnapshot = "map:snapshot"

// Client is a small JSON cache over Redis, used for the live map snapshot.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// MustNewClient connects to Redis and pings it.
func MustNewClient() *Client {
	addr := viper.GetString("redis.addr")
	if addr == "" {
		addr = "redis:6379"
	}

	ttlSeconds := viper.GetInt("redis.map_snapshot_ttl_seconds")
	if ttlSeconds == 0 {
		ttlSeconds = 5
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   viper.GetInt("redis.db"),
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	return &Client{
		rdb: rdb,
		ttl: time.Duration(ttlSeconds) * time.Second,
	}
}

// Close closes the connection for graceful shutdown.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetJSON reads a cached value into dest. The second return is false on a
// cache miss.
func (c *Client) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache key %s: %w", key, err)
	}

	return true, nil
}

// SetJSON stores a value under the configured TTL.
func (c *Client) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache key %s: %w", key, err)
	}

	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}

	return nil
}

// Invalidate drops a key, for writers that change what the key caches.
func (c *Client) Invalidate(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache key %s: %w", key, err)
	}

	return nil
}
