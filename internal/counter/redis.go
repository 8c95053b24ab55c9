package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/storage"
	"github.com/redis/go-redis/v9"
)

// RedisStore backs counters with Redis INCR, shared across all process
// instances. The TTL is set only when INCR creates the key, so the window
// expiry is anchored to the first request in the window.
type RedisStore struct {
	redis *storage.RedisClient
}

func NewRedisStore(redis *storage.RedisClient) *RedisStore {
	return &RedisStore{redis: redis}
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.redis.Incr(ctx, key)
	if err != nil {
		return 0, err
	}

	if count == 1 {
		if err := s.redis.Expire(ctx, key, ttl); err != nil {
			return 0, err
		}
	}

	return count, nil
}

func (s *RedisStore) Peek(ctx context.Context, key string) (int64, error) {
	val, err := s.redis.Get(ctx, key)
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, err
	}

	return count, nil
}
