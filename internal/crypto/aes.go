package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
)

// Crypter encrypts and decrypts option values using AES-256-GCM.
type Crypter struct {
	aead cipher.AEAD
}

// New creates a Crypter from a secret of at least 32 characters. The AES key
// is the SHA-256 digest of the secret.
func New(secret string) (*Crypter, error) {
	if len(secret) < 32 {
		return nil, errors.New("crypto: secret must be at least 32 characters")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Crypter{aead: gcm}, nil
}

// EncryptString seals plaintext and returns base64(nonce || ciphertext).
func (c *Crypter) EncryptString(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func (c *Crypter) DecryptString(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) < c.aead.NonceSize() {
		return nil, errors.New("crypto: ciphertext too short")
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	return c.aead.Open(nil, nonce, ciphertext, nil)
}
