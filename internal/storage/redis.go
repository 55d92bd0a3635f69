package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/address-discovery/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisConn wraps the Redis client shared by the job queue and the request budget
type RedisConn struct {
	client *redis.Client
}

// NewRedisConn creates a Redis client and pings it once.
// The caller decides whether a failed ping is fatal.
func NewRedisConn(ctx context.Context, cfg *config.RedisConfig) (*RedisConn, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		// BRPOP blocks for the queue poll timeout; keep reads above it
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisConn{client: client}, nil
}

// NewRedisConnFromClient wraps an existing client without pinging it
func NewRedisConnFromClient(client *redis.Client) *RedisConn {
	return &RedisConn{client: client}
}

// Close closes the Redis connection
func (r *RedisConn) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Client returns the underlying Redis client
func (r *RedisConn) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is reachable
func (r *RedisConn) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
