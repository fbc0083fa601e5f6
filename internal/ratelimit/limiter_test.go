package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipping-gateway/internal/auth"
	"shipping-gateway/internal/common/logging"
)

func setupLimiter(t *testing.T, config Config) *Limiter {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, config, logging.NewDefaultLogger())
}

func TestAllowWithinBudget(t *testing.T) {
	l := setupLimiter(t, Config{Limit: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, err := l.Allow(ctx, "m1")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
	}

	allowed, remaining, err := l.Allow(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
}

func TestBudgetsAreMerchantScoped(t *testing.T) {
	l := setupLimiter(t, Config{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	allowed, _, err := l.Allow(ctx, "m1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = l.Allow(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, _, err = l.Allow(ctx, "m2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNilClientDisablesLimiting(t *testing.T) {
	l := New(nil, Config{Limit: 1, Window: time.Minute}, logging.NewDefaultLogger())

	for i := 0; i < 10; i++ {
		allowed, _, err := l.Allow(context.Background(), "m1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func merchantRequest(merchantID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	a := auth.New("test-secret-test-secret-test-secret", time.Hour)
	token, _ := a.IssueToken(merchantID)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestMiddlewareRejectsOverBudget(t *testing.T) {
	l := setupLimiter(t, Config{Limit: 2, Window: time.Minute})

	a := auth.New("test-secret-test-secret-test-secret", time.Hour)
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler = a.Middleware(l.Middleware(handler))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, merchantRequest("m1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, merchantRequest("m1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMiddlewareFailsOpenOnRedisError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	l := New(client, Config{Limit: 1, Window: time.Minute}, logging.NewDefaultLogger())
	a := auth.New("test-secret-test-secret-test-secret", time.Hour)
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler = a.Middleware(l.Middleware(handler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, merchantRequest("m1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
