package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipping-gateway/internal/crypto"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/storage/memory"
)

func TestEncryptedStore_CredentialsEncryptedAtRest(t *testing.T) {
	inner := memory.New()
	encryptor, err := crypto.NewCredentialEncryptor("test-key")
	require.NoError(t, err)
	store := NewEncryptedStore(inner, encryptor)
	ctx := context.Background()

	cfg := &models.MerchantProviderConfig{
		MerchantID:    "m-1",
		CarrierCode:   "ups",
		APIKey:        "plaintext-key",
		APISecret:     "plaintext-secret",
		AccountNumber: "12345",
		Enabled:       true,
	}
	require.NoError(t, store.UpsertProviderConfig(ctx, cfg))

	// The caller's struct is untouched.
	assert.Equal(t, "plaintext-key", cfg.APIKey)

	// What the inner store holds is ciphertext.
	raw, err := inner.GetProviderConfig(ctx, "m-1", "ups")
	require.NoError(t, err)
	assert.NotEqual(t, "plaintext-key", raw.APIKey)
	assert.NotEqual(t, "plaintext-secret", raw.APISecret)
	assert.NotEqual(t, "12345", raw.AccountNumber)

	// Reads through the wrapper decrypt transparently.
	loaded, err := store.GetProviderConfig(ctx, "m-1", "ups")
	require.NoError(t, err)
	assert.Equal(t, "plaintext-key", loaded.APIKey)
	assert.Equal(t, "plaintext-secret", loaded.APISecret)
	assert.Equal(t, "12345", loaded.AccountNumber)

	configs, err := store.ListProviderConfigs(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "plaintext-key", configs[0].APIKey)
}

func TestNewEncryptedStore_NilEncryptorPassesThrough(t *testing.T) {
	inner := memory.New()
	store := NewEncryptedStore(inner, nil)
	assert.Equal(t, Store(inner), store)
}
