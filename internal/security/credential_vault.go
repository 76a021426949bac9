package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	ErrInvalidCiphertext = errors.NewKind("invalid ciphertext")
	ErrInvalidKeyLength  = errors.NewKind("encryption key must be 32 bytes for AES-256, got %d")
)

// CredentialVault encrypts data source passwords at rest.
type CredentialVault struct {
	gcm cipher.AEAD
}

// NewCredentialVault creates a vault from a 32 byte AES-256 key.
func NewCredentialVault(masterKey []byte) (*CredentialVault, error) {
	if len(masterKey) != 32 {
		return nil, ErrInvalidKeyLength.New(len(masterKey))
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &CredentialVault{gcm: gcm}, nil
}

// NewCredentialVaultFromSecret derives the key from an arbitrary secret.
func NewCredentialVaultFromSecret(secret string) (*CredentialVault, error) {
	key := sha256.Sum256([]byte(secret))
	return NewCredentialVault(key[:])
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (cv *CredentialVault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, cv.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := cv.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (cv *CredentialVault) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext.Wrap(err)
	}
	n := cv.gcm.NonceSize()
	if len(data) < n {
		return "", ErrInvalidCiphertext.New()
	}
	plaintext, err := cv.gcm.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", ErrInvalidCiphertext.Wrap(err)
	}
	return string(plaintext), nil
}
