// Package secrets implements the reversible field codec that guards the
// stored secret text. Password credentials are not covered here; those use
// one-way bcrypt hashing in the services layer.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrDecryptionFailed is returned when a ciphertext was not produced by
	// this codec's key, or was corrupted in storage. No partial plaintext is
	// ever returned alongside it.
	ErrDecryptionFailed = errors.New("field decryption failed")

	ErrInvalidKey = errors.New("encryption key must be 32 bytes, hex or base64 encoded")
)

// Codec encrypts and decrypts individual fields with AES-256-GCM under a
// single process-wide key. The key is read once at startup and never logged.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec parses the configured key (64 hex chars or base64 of 32 bytes)
// and prepares the AEAD.
func NewCodec(key string) (*Codec, error) {
	raw, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// EncryptField seals plaintext and returns base64(nonce ‖ ciphertext). The
// nonce is prepended so DecryptField can split it back out.
func (c *Codec) EncryptField(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptField reverses EncryptField. Any malformed input, wrong key, or
// tampered ciphertext yields ErrDecryptionFailed.
func (c *Codec) DecryptField(ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(blob) < c.aead.NonceSize() {
		return "", ErrDecryptionFailed
	}
	nonce, sealed := blob[:c.aead.NonceSize()], blob[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

func parseKey(key string) ([]byte, error) {
	if raw, err := hex.DecodeString(key); err == nil && len(raw) == 32 {
		return raw, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(key); err == nil && len(raw) == 32 {
		return raw, nil
	}
	return nil, ErrInvalidKey
}
