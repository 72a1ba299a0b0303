// Package idempotency provides a message-level dedup store for bus
// consumers. It is a second, orthogonal mechanism from the database-level
// idempotency-key uniqueness enforced on Order/Reservation rows: this one
// exists purely to skip replaying an already-handled bus message, and
// carries no business meaning of its own.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store tracks which message IDs a consumer has already applied.
type Store interface {
	// Reserve claims key, returning false if it was already reserved.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// IsProcessed reports whether key has already been reserved.
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Release clears key, allowing it to be reserved again.
	Release(ctx context.Context, key string) error
}

// RedisStore is a Redis-backed Store.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a RedisStore namespaced under prefix (typically the
// consuming service's name).
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// Reserve claims key via SETNX.
func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	fullKey := s.getFullKey(key)
	result, err := s.client.SetNX(ctx, fullKey, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return result, nil
}

// IsProcessed checks whether key has already been reserved.
func (s *RedisStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	fullKey := s.getFullKey(key)
	exists, err := s.client.Exists(ctx, fullKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return exists > 0, nil
}

// Release clears a previously reserved key.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	fullKey := s.getFullKey(key)
	_, err := s.client.Del(ctx, fullKey).Result()
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) getFullKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}
