package storage

import (
	"context"

	"shipping-gateway/internal/crypto"
	"shipping-gateway/internal/models"
)

// EncryptedStore decorates a Store so carrier credentials are encrypted at
// rest. Everything except provider-config reads and writes passes straight
// through to the inner store.
type EncryptedStore struct {
	Store
	encryptor *crypto.CredentialEncryptor
}

// NewEncryptedStore wraps inner with credential encryption. A nil encryptor
// returns the inner store unchanged (development mode).
func NewEncryptedStore(inner Store, encryptor *crypto.CredentialEncryptor) Store {
	if encryptor == nil {
		return inner
	}
	return &EncryptedStore{Store: inner, encryptor: encryptor}
}

// UpsertProviderConfig encrypts credentials before persisting. The caller's
// config is not mutated.
func (s *EncryptedStore) UpsertProviderConfig(ctx context.Context, cfg *models.MerchantProviderConfig) error {
	sealed := *cfg
	var err error
	if sealed.APIKey, err = s.encryptor.Encrypt(cfg.APIKey); err != nil {
		return err
	}
	if sealed.APISecret, err = s.encryptor.Encrypt(cfg.APISecret); err != nil {
		return err
	}
	if sealed.AccountNumber, err = s.encryptor.Encrypt(cfg.AccountNumber); err != nil {
		return err
	}
	return s.Store.UpsertProviderConfig(ctx, &sealed)
}

// GetProviderConfig decrypts credentials after loading.
func (s *EncryptedStore) GetProviderConfig(ctx context.Context, merchantID, carrierCode string) (*models.MerchantProviderConfig, error) {
	cfg, err := s.Store.GetProviderConfig(ctx, merchantID, carrierCode)
	if err != nil {
		return nil, err
	}
	if err := s.open(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListProviderConfigs decrypts credentials after loading.
func (s *EncryptedStore) ListProviderConfigs(ctx context.Context, merchantID string) ([]*models.MerchantProviderConfig, error) {
	configs, err := s.Store.ListProviderConfigs(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	for _, cfg := range configs {
		if err := s.open(cfg); err != nil {
			return nil, err
		}
	}
	return configs, nil
}

func (s *EncryptedStore) open(cfg *models.MerchantProviderConfig) error {
	var err error
	if cfg.APIKey, err = s.encryptor.Decrypt(cfg.APIKey); err != nil {
		return err
	}
	if cfg.APISecret, err = s.encryptor.Decrypt(cfg.APISecret); err != nil {
		return err
	}
	if cfg.AccountNumber, err = s.encryptor.Decrypt(cfg.AccountNumber); err != nil {
		return err
	}
	return nil
}
