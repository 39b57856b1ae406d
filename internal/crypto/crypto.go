package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize     = 32     // Generated salt size in bytes
	KeySize      = 32     // AES-256 key size
	NonceSize    = 12     // GCM nonce size
	TagSize      = 16     // GCM authentication tag size
	DefaultIters = 100000 // Default PBKDF2 iterations
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrCipher            = errors.New("cipher failure")
	ErrUnsupported       = errors.New("cipher primitive unavailable")
)

// KDF derives encryption keys from passwords.
// The salt is not secret, but the same (password, salt) pair must be used
// to reproduce the same key across sessions.
type KDF struct {
	Salt       []byte
	Iterations int
}

// NewKDF creates a new KDF with a random salt and default iterations
func NewKDF() (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return &KDF{
		Salt:       salt,
		Iterations: DefaultIters,
	}, nil
}

// Derive runs PBKDF2-HMAC-SHA256 over the password and the KDF salt and
// returns an opaque Key. The iteration count makes this deliberately slow;
// the context is checked before the work starts, not during.
func (k *KDF) Derive(ctx context.Context, password []byte) (*Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := pbkdf2.Key(password, k.Salt, k.Iterations, KeySize, sha256.New)
	key, err := newKey(raw)
	ClearBytes(raw)
	return key, err
}

// Key is an opaque handle for an AES-256-GCM key. The derived key bytes are
// consumed during construction and zeroized; the handle exposes only seal
// and open operations. A Key is safe for concurrent use until Destroy.
type Key struct {
	aead cipher.AEAD
}

func newKey(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", ErrUnsupported, KeySize)
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	return &Key{aead: aead}, nil
}

// seal encrypts and authenticates plaintext under the given nonce.
// The authentication tag is appended to the returned ciphertext.
func (k *Key) seal(nonce, plaintext []byte) ([]byte, error) {
	if k.aead == nil {
		return nil, fmt.Errorf("%w: key has been destroyed", ErrCipher)
	}
	return k.aead.Seal(nil, nonce, plaintext, nil), nil
}

// open verifies and decrypts ciphertext-plus-tag under the given nonce.
// A tag mismatch (wrong key, corrupted or tampered data) yields ErrAuthFailed
// and no plaintext.
func (k *Key) open(nonce, ciphertext []byte) ([]byte, error) {
	if k.aead == nil {
		return nil, fmt.Errorf("%w: key has been destroyed", ErrCipher)
	}
	plaintext, err := k.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Destroy drops the underlying AEAD. Subsequent seal/open calls fail with
// ErrCipher. The expanded key schedule inside the AEAD cannot be zeroized
// from here; it becomes unreachable once the Key is collected.
func (k *Key) Destroy() {
	k.aead = nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
