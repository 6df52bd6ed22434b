package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend is the durable key/value surface the store needs. It is an
// interface so the dual-backend policy can be unit-tested with a fake that
// fails on demand; the production implementation wraps a redis client.
type Backend interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key, member string) error
	// ZRevRange returns members of key ordered by score descending, [start, stop].
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// ZRangeByScoreMax returns members with score <= max, ascending.
	ZRangeByScoreMax(ctx context.Context, key string, max float64) ([]string, error)
}

// errBackendMiss distinguishes "key absent" from an operational failure.
// Only operational failures disable the durable backend.
var errBackendMiss = errors.New("store: backend miss")

type redisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend wraps a redis client as the durable backend.
func NewRedisBackend(rdb *redis.Client) Backend {
	return &redisBackend{rdb: rdb}
}

func (b *redisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return b.rdb.Set(ctx, key, value, ttl).Err()
}

func (b *redisBackend) Get(ctx context.Context, key string) (string, error) {
	v, err := b.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errBackendMiss
	}
	return v, err
}

func (b *redisBackend) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return b.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (b *redisBackend) ZRem(ctx context.Context, key, member string) error {
	return b.rdb.ZRem(ctx, key, member).Err()
}

func (b *redisBackend) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return b.rdb.ZRevRange(ctx, key, start, stop).Result()
}

func (b *redisBackend) ZRangeByScoreMax(ctx context.Context, key string, max float64) ([]string, error) {
	return b.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: formatScore(max),
	}).Result()
}

func formatScore(f float64) string {
	// Scores here are unix millis; format without exponent so redis parses them.
	return strconv.FormatFloat(f, 'f', -1, 64)
}
