package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// GenerateSecret generates a cryptographically secure random secret
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateServiceSecrets generates the JWT secret and the draft encryption key
func GenerateServiceSecrets() (jwtSecret, draftKey string, err error) {
	jwtSecret, err = GenerateSecret(32) // 256-bit
	if err != nil {
		return "", "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}

	draftKey, err = GenerateSecret(32)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate draft key: %w", err)
	}

	return jwtSecret, draftKey, nil
}

// sealedPrefix marks stored values produced by DraftSealer
const sealedPrefix = "xc1:"

// ErrNotSealed is returned when opening a value that was stored in plaintext
var ErrNotSealed = errors.New("value is not sealed")

// DraftSealer encrypts persisted drafts with XChaCha20-Poly1305.
// The key is derived from the configured passphrase with SHA-256.
type DraftSealer struct {
	key []byte
}

// NewDraftSealer creates a sealer for a non-empty passphrase
func NewDraftSealer(passphrase string) (*DraftSealer, error) {
	if passphrase == "" {
		return nil, errors.New("draft encryption key is empty")
	}
	sum := sha256.Sum256([]byte(passphrase))
	return &DraftSealer{key: sum[:]}, nil
}

// Seal encrypts plaintext and returns prefix + base64(nonce || ciphertext)
func (s *DraftSealer) Seal(plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal
func (s *DraftSealer) Open(stored string) ([]byte, error) {
	if len(stored) < len(sealedPrefix) || stored[:len(sealedPrefix)] != sealedPrefix {
		return nil, ErrNotSealed
	}

	raw, err := base64.StdEncoding.DecodeString(stored[len(sealedPrefix):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed value: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return nil, errors.New("sealed value too short")
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt sealed value: %w", err)
	}
	return plaintext, nil
}
