package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the shared Redis client used by all repositories.
// Every cross-request atomic operation (claim CAS, coupon usage increment,
// stock decrement, order-id counter) runs as a single command or Lua script
// on this client.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis connection from a URL.
// The redisURL should be in the format: redis://[:password@]host[:port][/database]
func NewRedis(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Redis{client: redis.NewClient(opts)}, nil
}

// Client exposes the underlying go-redis client for repositories.
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
