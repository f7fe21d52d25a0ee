package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisScanCount = 100

// RedisBackend stores namespaces as prefixed keys in Redis. Expiry is native.
type RedisBackend struct {
	client *redis.Client
}

// NewRedis wraps an existing Redis client.
func NewRedis(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Namespace implements Backend.
func (b *RedisBackend) Namespace(name string) KV {
	return &redisKV{client: b.client, prefix: name + ":"}
}

// Ping implements Backend.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close implements Backend.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

type redisKV struct {
	client *redis.Client
	prefix string
}

func (r *redisKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *redisKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (r *redisKV) List(ctx context.Context) ([]string, error) {
	keys := []string{}
	// SCAN may return a key more than once.
	seen := make(map[string]struct{})
	iter := r.client.Scan(ctx, 0, r.prefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), r.prefix)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}
