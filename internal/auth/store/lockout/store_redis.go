package lockout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const failureKeyPrefix = "lockout:failures:"

// RedisStore shares failure counters across instances using a sorted set of
// failure timestamps per key, scored by unix nanos and pruned to the window.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func failureKey(key string) string { return failureKeyPrefix + key }

func (s *RedisStore) RecordFailure(ctx context.Context, key string, at time.Time, window time.Duration) (int, error) {
	rkey := failureKey(key)
	cutoff := at.Add(-window).UnixNano()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, rkey, redis.Z{
		Score:  float64(at.UnixNano()),
		Member: strconv.FormatInt(at.UnixNano(), 10),
	})
	count := pipe.ZCard(ctx, rkey)
	pipe.Expire(ctx, rkey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record auth failure: %w", err)
	}
	return int(count.Val()), nil
}

func (s *RedisStore) Failures(ctx context.Context, key string, at time.Time, window time.Duration) (int, error) {
	rkey := failureKey(key)
	cutoff := at.Add(-window).UnixNano()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "-inf", strconv.FormatInt(cutoff, 10))
	count := pipe.ZCard(ctx, rkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("count auth failures: %w", err)
	}
	return int(count.Val()), nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, failureKey(key)).Err()
}
