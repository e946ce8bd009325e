// Package core provides the capability contract, registry, configuration
// and shared interfaces of the skillwire framework. This file implements a
// redis-backed Memory with key namespacing, used for session persistence
// when a single process is not the whole story.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisMemory implements the Memory interface on a redis connection.
// All keys are prefixed with the configured namespace.
type RedisMemory struct {
	client    *redis.Client
	namespace string
	logger    Logger
}

// RedisMemoryOptions configures the redis-backed memory
type RedisMemoryOptions struct {
	RedisURL  string
	Namespace string // key namespace, defaults to "skillwire"
	Logger    Logger // optional
}

// NewRedisMemory connects to redis and verifies the connection with a ping.
func NewRedisMemory(opts RedisMemoryOptions) (*RedisMemory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if opts.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required: %w", ErrInvalidConfiguration)
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		logger.Error("Failed to parse redis URL", map[string]interface{}{
			"operation": "redis_connect",
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("invalid redis URL: %w", ErrInvalidConfiguration)
	}

	client := redis.NewClient(redisOpt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to redis", map[string]interface{}{
			"operation": "redis_connect",
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("failed to connect to redis: %w", ErrConnectionFailed)
	}

	namespace := opts.Namespace
	if namespace == "" {
		namespace = "skillwire"
	}

	logger.Info("Redis memory connected", map[string]interface{}{
		"operation": "redis_connect",
		"namespace": namespace,
	})

	return &RedisMemory{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}, nil
}

func (r *RedisMemory) key(k string) string {
	return r.namespace + ":" + k
}

// Get retrieves a value; a missing key returns an empty string, not an error.
func (r *RedisMemory) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

// Set stores a value with an optional TTL (ttl <= 0 means no expiry).
func (r *RedisMemory) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key
func (r *RedisMemory) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present
func (r *RedisMemory) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %q: %w", key, err)
	}
	return n > 0, nil
}

// Close releases the redis connection
func (r *RedisMemory) Close() error {
	return r.client.Close()
}
