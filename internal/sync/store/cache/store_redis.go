package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"fieldsync/internal/sync/models"
)

// RedisStore keeps cache entries in a Redis hash per (scope, kind). Entries
// are permanent, matching the no-TTL contract of the cache port.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis constructs a Redis-backed lookup cache.
func NewRedis(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func hashKey(scopeID string, kind models.CacheKind) string {
	return fmt.Sprintf("fieldsync:cache:%s:%s", scopeID, kind)
}

func (s *RedisStore) Get(ctx context.Context, scopeID string, kind models.CacheKind, key string) (string, bool) {
	value, err := s.client.HGet(ctx, hashKey(scopeID, kind), key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "cache read failed, falling back to remote",
				"kind", string(kind),
				"key", key,
				"error", err.Error(),
			)
		}
		return "", false
	}
	return value, true
}

func (s *RedisStore) Set(ctx context.Context, scopeID string, kind models.CacheKind, key, value string) {
	if err := s.client.HSet(ctx, hashKey(scopeID, kind), key, value).Err(); err != nil {
		s.logger.WarnContext(ctx, "cache write failed",
			"kind", string(kind),
			"key", key,
			"error", err.Error(),
		)
	}
}
