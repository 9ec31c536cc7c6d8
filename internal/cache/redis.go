package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/liftsync/internal/model"
)

// DefaultRedisPrefix namespaces cache keys.
const DefaultRedisPrefix = "liftsync:cache:"

// RedisBackend keeps entries in Redis so several processes can share one
// response cache. Keys also carry a Redis TTL matching the entry lifetime.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to addr and verifies the connection.
func NewRedisBackend(ctx context.Context, addr, prefix string) (*RedisBackend, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisBackendFromClient(client, prefix), nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// Close releases the client connection pool.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) key(endpoint string) string {
	return b.prefix + endpoint
}

// redisEntry is the stored JSON form. Times are unix milliseconds to
// match the SQLite backend.
type redisEntry struct {
	Endpoint string `json:"endpoint"`
	Body     []byte `json:"body"`
	Expires  int64  `json:"expires"`
	CachedAt int64  `json:"cached_at"`
}

func (b *RedisBackend) Get(ctx context.Context, endpoint string) (model.CacheEntry, bool, error) {
	data, err := b.client.Get(ctx, b.key(endpoint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.CacheEntry{}, false, nil
		}
		return model.CacheEntry{}, false, fmt.Errorf("redis get entry: %w", err)
	}
	e, err := decodeRedisEntry(data)
	if err != nil {
		return model.CacheEntry{}, false, err
	}
	return e, true, nil
}

func (b *RedisBackend) Put(ctx context.Context, e model.CacheEntry) error {
	data, err := json.Marshal(redisEntry{
		Endpoint: e.Endpoint,
		Body:     e.Body,
		Expires:  e.Expires.UnixMilli(),
		CachedAt: e.CachedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	ttl := e.Expires.Sub(e.CachedAt)
	if ttl < 0 {
		ttl = 0
	}
	if err := b.client.Set(ctx, b.key(e.Endpoint), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis put entry: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, endpoint string) error {
	if err := b.client.Del(ctx, b.key(endpoint)).Err(); err != nil {
		return fmt.Errorf("redis delete entry: %w", err)
	}
	return nil
}

// SweepExpired scans the prefix and deletes entries whose stored expiry
// is before now. Keys Redis already expired are simply not seen.
func (b *RedisBackend) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	var swept int64
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := b.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return swept, fmt.Errorf("redis sweep get: %w", err)
		}
		e, err := decodeRedisEntry(data)
		if err != nil || e.Expires.Before(now) {
			n, err := b.client.Del(ctx, key).Result()
			if err != nil {
				return swept, fmt.Errorf("redis sweep delete: %w", err)
			}
			swept += n
		}
	}
	if err := iter.Err(); err != nil {
		return swept, fmt.Errorf("redis sweep scan: %w", err)
	}
	return swept, nil
}

func decodeRedisEntry(data []byte) (model.CacheEntry, error) {
	var re redisEntry
	if err := json.Unmarshal(data, &re); err != nil {
		return model.CacheEntry{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	return model.CacheEntry{
		Endpoint: re.Endpoint,
		Body:     re.Body,
		Expires:  time.UnixMilli(re.Expires).UTC(),
		CachedAt: time.UnixMilli(re.CachedAt).UTC(),
	}, nil
}
