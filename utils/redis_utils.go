package utils

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisClient struct {
	inner *redis.Client
}

// GetRedisClient returns nil when REDIS_HOST is not configured, callers treat
// that as "no cache".
func GetRedisClient() *RedisClient {
	if os.Getenv("REDIS_HOST") == "" {
		return nil
	}
	return &RedisClient{
		inner: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), EnvOrDefault("REDIS_PORT", "6379")),
			Password: os.Getenv("REDIS_PASSWD"),
			DB:       0, // use default DB
		})}
}

// NewRedisClient wraps an existing client, mainly for tests.
func NewRedisClient(c *redis.Client) *RedisClient {
	return &RedisClient{inner: c}
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx).Err()
}

// Get returns ok=false on a cache miss.
func (r *RedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.inner.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisClient) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.inner.Set(ctx, key, value, ttl).Err()
}

func (r *RedisClient) Close() error {
	return r.inner.Close()
}
