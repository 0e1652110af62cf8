package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/config"
)

// RedisStorage stores cache entries in Redis under a key prefix.
// Entries carry their own timestamps, so keys are written without expiry.
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStorage connects to Redis and verifies the connection
func NewRedisStorage(cfg config.RedisConfig, prefix string, logger *zap.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("prefix", prefix),
	)

	return NewRedisStorageFromClient(client, prefix, logger), nil
}

// NewRedisStorageFromClient wraps an existing client
func NewRedisStorageFromClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisStorage {
	return &RedisStorage{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Close closes the Redis connection
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// GetItem retrieves a value from Redis
func (s *RedisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get from cache: %w", err)
	}
	return val, true, nil
}

// SetItem stores a value in Redis
func (s *RedisStorage) SetItem(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// RemoveItem removes a value from Redis
func (s *RedisStorage) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Clear removes all keys under the prefix
func (s *RedisStorage) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("Failed to delete cache key",
				zap.String("key", iter.Val()),
				zap.Error(err),
			)
		}
	}
	return iter.Err()
}

// HealthCheck checks if Redis is reachable
func (s *RedisStorage) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var (
	_ Storage       = (*RedisStorage)(nil)
	_ HealthChecker = (*RedisStorage)(nil)
)
