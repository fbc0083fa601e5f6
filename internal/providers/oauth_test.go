package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
)

func newTokenServer(t *testing.T, expiresIn int, hits *int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-" + r.Form.Get("client_id"),
			"expires_in":   expiresIn,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTokenCacheReusesFreshTokens(t *testing.T) {
	var hits int64
	server := newTokenServer(t, 3600, &hits)
	tc := NewTokenCache(server.Client(), logging.NewDefaultLogger())
	ctx := context.Background()

	tok1, err := tc.Token(ctx, server.URL, "id-1", "secret")
	require.NoError(t, err)
	tok2, err := tc.Token(ctx, server.URL, "id-1", "secret")
	require.NoError(t, err)

	assert.Equal(t, "tok-id-1", tok1)
	assert.Equal(t, tok1, tok2)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestTokenCacheIsScopedByClientID(t *testing.T) {
	var hits int64
	server := newTokenServer(t, 3600, &hits)
	tc := NewTokenCache(server.Client(), logging.NewDefaultLogger())
	ctx := context.Background()

	tok1, err := tc.Token(ctx, server.URL, "merchant-a", "s")
	require.NoError(t, err)
	tok2, err := tc.Token(ctx, server.URL, "merchant-b", "s")
	require.NoError(t, err)

	assert.NotEqual(t, tok1, tok2)
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}

func TestTokenCacheRefetchesNearExpiry(t *testing.T) {
	var hits int64
	// Expires inside the refresh skew, so every call refetches.
	server := newTokenServer(t, 30, &hits)
	tc := NewTokenCache(server.Client(), logging.NewDefaultLogger())
	ctx := context.Background()

	_, err := tc.Token(ctx, server.URL, "id-1", "secret")
	require.NoError(t, err)
	_, err = tc.Token(ctx, server.URL, "id-1", "secret")
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}

func TestTokenCacheRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	tc := NewTokenCache(server.Client(), logging.NewDefaultLogger())
	_, err := tc.Token(context.Background(), server.URL, "id", "wrong")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
}

func TestTokenCacheRejectsEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"expires_in": 3600})
	}))
	t.Cleanup(server.Close)

	tc := NewTokenCache(server.Client(), logging.NewDefaultLogger())
	_, err := tc.Token(context.Background(), server.URL, "id", "secret")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
}

func TestRefreshExpiringRefetchesStaleEntries(t *testing.T) {
	var hits int64
	server := newTokenServer(t, 120, &hits)
	tc := NewTokenCache(server.Client(), logging.NewDefaultLogger())
	ctx := context.Background()

	// 120s expiry is outside the on-demand skew but inside the scheduled
	// refresh window, so the token is served from cache yet refreshed.
	_, err := tc.Token(ctx, server.URL, "id-1", "secret")
	require.NoError(t, err)
	require.Equal(t, int64(1), atomic.LoadInt64(&hits))

	tc.RefreshExpiring(ctx)
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}
