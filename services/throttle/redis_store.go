package throttle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each source's failures in a sorted set scored by
// timestamp and its lock in a plain key. Writes run in MULTI/EXEC.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func failuresKey(key string) string { return key + ":failures" }
func lockKey(key string) string     { return key + ":lock" }

func score(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func (s *RedisStore) AddFailure(ctx context.Context, key string, at time.Time, window time.Duration) (int, error) {
	fk := failuresKey(key)

	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, fk, "-inf", score(at.Add(-window)))
		pipe.ZAdd(ctx, fk, redis.Z{Score: float64(at.UnixNano()), Member: score(at) + ":" + uuid.NewString()})
		card = pipe.ZCard(ctx, fk)
		pipe.PExpire(ctx, fk, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record login failure: %w", err)
	}
	return int(card.Val()), nil
}

func (s *RedisStore) Failures(ctx context.Context, key string, at time.Time, window time.Duration) (int, error) {
	count, err := s.client.ZCount(ctx, failuresKey(key), "("+score(at.Add(-window)), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count login failures: %w", err)
	}
	return int(count), nil
}

func (s *RedisStore) Lock(ctx context.Context, key string, until time.Time) error {
	lk := lockKey(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lk, score(until), 0)
		pipe.ExpireAt(ctx, lk, until)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to lock source: %w", err)
	}
	return nil
}

func (s *RedisStore) LockedUntil(ctx context.Context, key string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, lockKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read source lock: %w", err)
	}

	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt source lock value: %w", err)
	}
	return time.Unix(0, nanos), true, nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, failuresKey(key), lockKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to clear source: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
