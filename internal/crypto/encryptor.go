// Package crypto provides AES-256-GCM encryption for sensitive merchant
// carrier credentials (API keys, secrets, account numbers) before they are
// written to storage.
//
// Each encryption uses a fresh random nonce, so encrypting the same
// plaintext twice yields different ciphertexts. GCM authenticates as well
// as encrypts; tampered ciphertexts fail to decrypt.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"shipping-gateway/internal/common/errors"
)

// Static salt keeps key derivation deterministic across restarts.
var keyDerivationSalt = []byte("shipping-gateway-salt")

// CredentialEncryptor encrypts and decrypts credential strings. It is safe
// for concurrent use.
type CredentialEncryptor struct {
	key []byte
}

// NewCredentialEncryptor derives a 32-byte AES-256 key from the passphrase
// using PBKDF2. The passphrase must not be empty.
func NewCredentialEncryptor(passphrase string) (*CredentialEncryptor, error) {
	if passphrase == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}
	derived := pbkdf2.Key([]byte(passphrase), keyDerivationSalt, 10000, 32, sha256.New)
	return &CredentialEncryptor{key: derived}, nil
}

// Encrypt returns the plaintext encrypted and base64-encoded, with the
// nonce prepended. Empty input passes through as empty.
func (e *CredentialEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Wrong keys, truncated data, and tampering all
// surface as errors. Empty input passes through as empty.
func (e *CredentialEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.InternalError("failed to decode ciphertext", err)
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.ValidationError("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.InternalError("failed to decrypt", err)
	}
	return string(plaintext), nil
}
