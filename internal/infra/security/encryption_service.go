// File: internal/infra/security/encryption_service.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Sealer protects message content at rest. The session id is bound as
// associated data, so a ciphertext copied into another session fails to open.
type Sealer interface {
	Seal(sessionID, plaintext string) (string, error)
	Open(sessionID, ciphertext string) (string, error)
	Enabled() bool
}

var (
	_ Sealer = (*EncryptionService)(nil)
	_ Sealer = Plaintext{}
)

// EncryptionService uses AES-GCM with a random nonce per message.
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService constructs an AES-GCM service.
// Key must be 16, 24, or 32 bytes (AES-128/192/256).
func NewEncryptionService(key string) (*EncryptionService, error) {
	k := []byte(key)
	n := len(k)
	if n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

// NewSealer returns an AES-GCM sealer for key, or Plaintext when key is empty.
func NewSealer(key string) (Sealer, error) {
	if key == "" {
		return Plaintext{}, nil
	}
	return NewEncryptionService(key)
}

func (e *EncryptionService) Enabled() bool { return true }

// Seal returns base64(nonce || ciphertext).
func (e *EncryptionService) Seal(sessionID, plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := e.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(sessionID))
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Open accepts output of Seal for the same session and returns the plaintext.
func (e *EncryptionService) Open(sessionID, b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns {
		return "", errors.New("ciphertext too short")
	}
	nonce, ct := data[:ns], data[ns:]
	pt, err := e.gcm.Open(nil, nonce, ct, []byte(sessionID))
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}

// Plaintext stores content as is.
type Plaintext struct{}

func (Plaintext) Seal(_, plaintext string) (string, error) { return plaintext, nil }
func (Plaintext) Open(_, ciphertext string) (string, error) { return ciphertext, nil }
func (Plaintext) Enabled() bool                              { return false }
