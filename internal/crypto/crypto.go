// Package crypto provides the symmetric encryption engine for SafeKey.
// Three ciphers share one contract: a SHA-256 counter keystream (legacy,
// unauthenticated), AES-256-GCM and ChaCha20-Poly1305. All take 32-byte keys.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
)

const (
	// KeySize is the size of every cipher key in bytes.
	KeySize = 32

	// NonceSize is the size of AEAD nonces in bytes (96 bits).
	NonceSize = 12

	// TagSize is the size of AEAD authentication tags in bytes.
	TagSize = 16
)

// Algorithm names a cipher implementation. The value is persisted in
// containers, so existing names must never change.
type Algorithm string

const (
	// AlgKeystream is the unauthenticated SHA-256 counter keystream.
	AlgKeystream Algorithm = "sha256-keystream"

	// AlgAES256GCM is AES-256 in Galois/Counter Mode.
	AlgAES256GCM Algorithm = "aes-256-gcm"

	// AlgChaCha20Poly1305 is the RFC 8439 AEAD construction.
	AlgChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

var (
	// ErrInvalidKeySize is returned when a key has an incorrect size.
	ErrInvalidKeySize = errors.New("key must be 32 bytes")

	// ErrInvalidCiphertext is returned when ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("ciphertext too short")

	// ErrDecryptionFailed is returned when decryption fails (authentication error).
	ErrDecryptionFailed = errors.New("decryption failed: authentication error")

	// ErrInvalidPlaintext is returned when an unauthenticated decryption
	// produced bytes that cannot be the expected plaintext.
	ErrInvalidPlaintext = errors.New("decryption failed: output is not valid plaintext")

	// ErrUnknownAlgorithm is returned for an unrecognised cipher name.
	ErrUnknownAlgorithm = errors.New("unknown cipher algorithm")
)

// Cipher is the contract shared by every encryption scheme.
type Cipher interface {
	// Encrypt returns the ciphertext for plaintext under key.
	Encrypt(key, plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt. Authenticated ciphers fail with
	// ErrDecryptionFailed on a wrong key or any modification; the keystream
	// cipher cannot detect either and always returns some output.
	Decrypt(key, ciphertext []byte) ([]byte, error)

	// Algorithm returns the persisted name of the cipher.
	Algorithm() Algorithm

	// Authenticated reports whether Decrypt detects a wrong key.
	Authenticated() bool
}

// New returns the cipher registered under alg.
func New(alg Algorithm) (Cipher, error) {
	switch alg {
	case AlgKeystream:
		return Keystream{}, nil
	case AlgAES256GCM:
		return AESGCM{}, nil
	case AlgChaCha20Poly1305:
		return ChaCha20Poly1305{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}
}

// Default returns the cipher used for new containers.
func Default() Cipher {
	return AESGCM{}
}

// GenerateKey generates a cryptographically secure random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// HashToken creates a SHA-256 hash of a token.
func HashToken(token []byte) []byte {
	hash := sha256.Sum256(token)
	return hash[:]
}

// CompareTokens compares two token hashes in constant time.
// Returns true if they are equal, false otherwise.
func CompareTokens(hash1, hash2 []byte) bool {
	return subtle.ConstantTimeCompare(hash1, hash2) == 1
}

// ZeroBytes securely zeros a byte slice.
// Use this to clear sensitive data from memory when done.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func checkKey(key []byte) error {
	if len(key) != KeySize {
		return ErrInvalidKeySize
	}
	return nil
}
