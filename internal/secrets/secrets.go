// Package secrets provides at-rest encryption for provider credentials.
//
// The cipher is initialised once at startup from a process-scoped symmetric
// key and is read-only afterwards. When no key is configured, a pass-through
// cipher is used and the insecure configuration is logged.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Cipher encrypts and decrypts small secrets such as API keys.
// Implementations must be safe for concurrent use.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Compile-time interface assertions.
var (
	_ Cipher = (*AESGCM)(nil)
	_ Cipher = Plaintext{}
)

// AESGCM implements [Cipher] with AES-256-GCM. The nonce is prepended to the
// ciphertext.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM creates an [AESGCM] cipher. The key material may be any non-empty
// string; it is stretched to 32 bytes with SHA-256 so operators can configure
// a passphrase rather than raw key bytes.
func NewAESGCM(keyMaterial string) (*AESGCM, error) {
	if keyMaterial == "" {
		return nil, errors.New("secrets: key material must not be empty")
	}

	key := sha256.Sum256([]byte(keyMaterial))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("secrets: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: create gcm: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

// Encrypt implements [Cipher].
func (c *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("secrets: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt implements [Cipher].
func (c *AESGCM) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		return nil, errors.New("secrets: ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("secrets: decrypt: %w", err)
	}
	return plaintext, nil
}

// Plaintext implements [Cipher] without encryption. Permitted when no key is
// configured; construction logs the insecure setup.
type Plaintext struct{}

// Encrypt implements [Cipher].
func (Plaintext) Encrypt(plaintext []byte) ([]byte, error) { return plaintext, nil }

// Decrypt implements [Cipher].
func (Plaintext) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }

// FromKey returns the cipher for the configured key material. An empty key
// yields [Plaintext] and logs a warning.
func FromKey(keyMaterial string) (Cipher, error) {
	if keyMaterial == "" {
		slog.Warn("no credential encryption key configured; provider credentials will be stored in plain text")
		return Plaintext{}, nil
	}
	return NewAESGCM(keyMaterial)
}
