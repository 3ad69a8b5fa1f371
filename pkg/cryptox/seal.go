package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for deriving the sealing key.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
)

var (
	// ErrEmptySecret is returned by NewSealer for an empty secret.
	ErrEmptySecret = errors.New("cryptox: empty secret")

	// ErrCiphertextTooShort is returned by Open for input shorter than a nonce.
	ErrCiphertextTooShort = errors.New("cryptox: ciphertext too short")
)

// Sealer encrypts small values at rest with AES-256-GCM.
//
// The key is derived once from a secret with Argon2id. The sealed format is
// [12-byte nonce][ciphertext][16-byte tag], with a random nonce per call.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a key from secret. label separates keys derived from the
// same secret for different purposes.
func NewSealer(secret []byte, label string) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	salt := sha256.Sum256([]byte("cryptox/" + label))
	key := argon2.IDKey(secret, salt[:], iterations, memory, parallelism, keyLength)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts and authenticates plaintext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal. It fails if the data was sealed under another key or
// has been tampered with.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextTooShort
	}

	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
