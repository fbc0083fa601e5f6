package storage

import (
	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/crypto"
	"shipping-gateway/internal/storage/memory"
	"shipping-gateway/internal/storage/postgres"
	"shipping-gateway/internal/storage/sqlite"
)

// Backend names accepted by NewStore.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// NewStore builds the configured store, wrapped with credential encryption
// when an encryption key is set.
func NewStore(storeType, dsn, encryptionKey string) (Store, error) {
	var inner Store
	var err error

	switch storeType {
	case TypeMemory:
		inner = memory.New()
	case TypeSQLite:
		inner, err = sqlite.NewAdapter(dsn)
	case TypePostgres:
		inner, err = postgres.NewAdapter(dsn)
	default:
		return nil, errors.ConfigError("unknown storage type: "+storeType)
	}
	if err != nil {
		return nil, err
	}

	if encryptionKey == "" {
		return inner, nil
	}
	encryptor, err := crypto.NewCredentialEncryptor(encryptionKey)
	if err != nil {
		return nil, err
	}
	return NewEncryptedStore(inner, encryptor), nil
}
