package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/obmin-service/obmin_service/internal/infrastructure/config"
)

// ListClient defines the list primitive the queue store is built on.
// Implemented by the real Redis client and by an in-memory stand-in selected
// through configuration.
type ListClient interface {
	LPush(ctx context.Context, key string, value string) error
	RPop(ctx context.Context, key string) (string, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, expiration time.Duration) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// ErrEmptyList is returned by RPop when the list has no items
var ErrEmptyList = fmt.Errorf("list is empty")

// redisListClient implements ListClient using go-redis
type redisListClient struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisListClient creates a Redis-backed list client
func NewRedisListClient(cfg *config.RedisConfig, logger *zap.Logger) (ListClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: cfg.MaxRetries,
		PoolSize:   cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis successfully", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))

	return &redisListClient{client: rdb, logger: logger}, nil
}

// LPush pushes a value onto the head of the list
func (r *redisListClient) LPush(ctx context.Context, key string, value string) error {
	return r.client.LPush(ctx, key, value).Err()
}

// RPop pops the oldest pushed value from the tail of the list
func (r *redisListClient) RPop(ctx context.Context, key string) (string, error) {
	val, err := r.client.RPop(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrEmptyList
	} else if err != nil {
		return "", fmt.Errorf("failed to pop from list '%s': %w", key, err)
	}
	return val, nil
}

// LRange returns the list slice [start, stop] without removing items
func (r *redisListClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.LRange(ctx, key, start, stop).Result()
}

// LLen returns the list length
func (r *redisListClient) LLen(ctx context.Context, key string) (int64, error) {
	return r.client.LLen(ctx, key).Result()
}

// Del deletes a key
func (r *redisListClient) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Expire sets a timeout on key. After the timeout has expired, the key will automatically be deleted.
func (r *redisListClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return r.client.Expire(ctx, key, expiration).Err()
}

// Keys returns all keys matching pattern
func (r *redisListClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	return r.client.Keys(ctx, pattern).Result()
}

// Ping checks the connection to Redis
func (r *redisListClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (r *redisListClient) Close() error {
	return r.client.Close()
}
