package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// redisEnvelope wraps a payload with its acquisition time so freshness
// survives the round trip.
type redisEnvelope struct {
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
}

// RedisCache is the multi-process Cache backed by Redis. Failures on
// the Redis side degrade to cache misses; the pipeline then refetches
// through the rate limiter as usual.
type RedisCache struct {
	client redis.Cmdable
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int, prefix string) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisCache{client: rdb, prefix: prefix}, nil
}

// NewRedisCacheWithClient wraps an existing client; used by tests.
func NewRedisCacheWithClient(client redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) redisKey(key Key) string {
	return r.prefix + ":" + key.String()
}

// Get retrieves a fresh entry, treating any Redis error as a miss.
func (r *RedisCache) Get(ctx context.Context, key Key) (Entry, bool) {
	val, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("redis get failed, treating as miss")
		}
		return Entry{}, false
	}

	var env redisEnvelope
	if err := json.Unmarshal([]byte(val), &env); err != nil {
		log.Warn().Err(err).Str("key", key.String()).Msg("corrupt redis envelope, treating as miss")
		return Entry{}, false
	}
	return Entry{Payload: env.Payload, FetchedAt: env.FetchedAt}, true
}

// Set stores the payload under the key with the given TTL. Redis
// enforces expiry; the envelope keeps fetched_at for freshness audits.
func (r *RedisCache) Set(ctx context.Context, key Key, payload []byte, ttl time.Duration) {
	env := redisEnvelope{Payload: payload, FetchedAt: time.Now()}
	data, err := json.Marshal(env)
	if err != nil {
		log.Warn().Err(err).Str("key", key.String()).Msg("redis envelope marshal failed")
		return
	}
	if err := r.client.Set(ctx, r.redisKey(key), data, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key.String()).Msg("redis set failed")
	}
}
