package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
)

// Cache defines the interface for cache operations.
//
// Values are opaque byte slices; callers own serialization. The rate
// redemption store depends on this being an external key-value store in
// multi-instance deployments, so implementations must not assume process
// affinity between Set and Get.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// LocalCache wraps patrickmn/go-cache for in-memory caching
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a new local cache instance
func NewLocalCache(defaultTTL, cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the local cache
func (l *LocalCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, found := l.cache.Get(key)
	if !found {
		return nil, false
	}
	data, ok := val.([]byte)
	if !ok {
		return nil, false
	}
	return data, true
}

// Set stores a value in the local cache
func (l *LocalCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l.cache.Set(key, value, ttl)
	return nil
}

// Delete removes a value from the local cache
func (l *LocalCache) Delete(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// Exists checks if a key exists
func (l *LocalCache) Exists(ctx context.Context, key string) (bool, error) {
	_, found := l.cache.Get(key)
	return found, nil
}

// Ping always succeeds for the in-process cache
func (l *LocalCache) Ping(ctx context.Context) error {
	return nil
}

// RedisCache wraps go-redis for distributed caching
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a value from Redis
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores a value in Redis
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err()
}

// Delete removes a value from Redis
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}

// Exists checks if a key exists
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.keyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping verifies the Redis connection
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
