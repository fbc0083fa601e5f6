package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, "test:"), mr
}

func TestLocalCache_SetGet(t *testing.T) {
	c := NewLocalCache(time.Minute, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))

	val, found := c.Get(ctx, "k1")
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), val)

	_, found = c.Get(ctx, "missing")
	assert.False(t, found)
}

func TestLocalCache_Delete(t *testing.T) {
	c := NewLocalCache(time.Minute, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k1"))

	_, found := c.Get(ctx, "k1")
	assert.False(t, found)
}

func TestLocalCache_Exists(t *testing.T) {
	c := NewLocalCache(time.Minute, 5*time.Minute)
	ctx := context.Background()

	exists, err := c.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))

	exists, err = c.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte(`{"amount":5}`), time.Minute))

	val, found := c.Get(ctx, "k1")
	assert.True(t, found)
	assert.Equal(t, []byte(`{"amount":5}`), val)
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	c, mr := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))

	// The raw key in redis carries the prefix
	assert.True(t, mr.Exists("test:k1"))
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	c, mr := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Second))

	mr.FastForward(2 * time.Second)

	_, found := c.Get(ctx, "k1")
	assert.False(t, found)
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k1"))

	exists, err := c.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFactory(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		c, err := New(Config{Type: TypeLocal, TTL: time.Minute, CleanupInterval: time.Minute})
		require.NoError(t, err)
		assert.IsType(t, &LocalCache{}, c)
	})

	t.Run("redis without client", func(t *testing.T) {
		_, err := New(Config{Type: TypeRedis})
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := New(Config{Type: "memcached"})
		assert.Error(t, err)
	})
}
