package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"leaderbot/internal/storage"
)

// RedisConfig configures the optional redis cache backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// Retention is the redis key expiry. It only bounds memory; freshness
	// is still decided by the Cache TTL.
	Retention time.Duration
}

// RedisCache implements storage.Cache on redis.
type RedisCache struct {
	rdb       redis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ storage.Cache = (*RedisCache)(nil)

type redisValue struct {
	Payload   []byte `json:"payload"`
	FetchedAt int64  `json:"fetched_at"`
}

func NewRedisCache(cfg RedisConfig) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisCacheClient(rdb, cfg.Prefix, cfg.Retention)
}

func NewRedisCacheClient(rdb redis.UniversalClient, prefix string, retention time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "leaderbot:lb:"
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisCache{rdb: rdb, prefix: prefix, retention: retention}
}

func (r *RedisCache) ReadCache(ctx context.Context, key string) (storage.CacheEntry, bool, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return storage.CacheEntry{}, false, nil
	}
	if err != nil {
		return storage.CacheEntry{}, false, err
	}
	var v redisValue
	if err := json.Unmarshal(b, &v); err != nil {
		return storage.CacheEntry{}, false, err
	}
	return storage.CacheEntry{Key: key, Payload: v.Payload, FetchedAt: time.UnixMilli(v.FetchedAt)}, true, nil
}

func (r *RedisCache) UpsertCache(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	b, err := json.Marshal(redisValue{Payload: payload, FetchedAt: fetchedAt.UnixMilli()})
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.prefix+key, b, r.retention).Err()
}

// Ping checks connectivity at startup.
func (r *RedisCache) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func (r *RedisCache) Close() error { return r.rdb.Close() }
