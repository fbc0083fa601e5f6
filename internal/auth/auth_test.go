package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	a := New(testSecret, time.Hour)

	token, err := a.IssueToken("m-1")
	require.NoError(t, err)

	merchantID, err := a.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "m-1", merchantID)
}

func TestIssueToken_EmptyMerchant(t *testing.T) {
	a := New(testSecret, time.Hour)
	_, err := a.IssueToken("")
	assert.Error(t, err)
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	a := New(testSecret, time.Hour)
	other := New("another-secret-another-secret-32", time.Hour)

	token, err := a.IssueToken("m-1")
	require.NoError(t, err)

	_, err = other.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_Expired(t *testing.T) {
	a := New(testSecret, -time.Minute)

	token, err := a.IssueToken("m-1")
	require.NoError(t, err)

	_, err = a.VerifyToken(token)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	a := New(testSecret, time.Hour)
	var gotMerchant string
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMerchant = MerchantID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		token, err := a.IssueToken("m-1")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "m-1", gotMerchant)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMerchantID_NoContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, MerchantID(req.Context()))
}
