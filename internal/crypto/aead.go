package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AESGCM implements Cipher with AES-256-GCM.
// The result is: nonce (12 bytes) + ciphertext + tag (16 bytes).
type AESGCM struct{}

// Encrypt encrypts plaintext with a fresh random nonce.
func (AESGCM) Encrypt(key, plaintext []byte) ([]byte, error) {
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	return seal(aead, plaintext)
}

// Decrypt verifies the tag and decrypts nonce-prefixed ciphertext.
func (AESGCM) Decrypt(key, ciphertext []byte) ([]byte, error) {
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	return open(aead, ciphertext)
}

// Algorithm returns AlgAES256GCM.
func (AESGCM) Algorithm() Algorithm { return AlgAES256GCM }

// Authenticated returns true.
func (AESGCM) Authenticated() bool { return true }

// ChaCha20Poly1305 implements Cipher with the IETF ChaCha20-Poly1305 AEAD.
// The output layout is the same as AESGCM.
type ChaCha20Poly1305 struct{}

// Encrypt encrypts plaintext with a fresh random nonce.
func (ChaCha20Poly1305) Encrypt(key, plaintext []byte) ([]byte, error) {
	aead, err := newChaCha(key)
	if err != nil {
		return nil, err
	}
	return seal(aead, plaintext)
}

// Decrypt verifies the tag and decrypts nonce-prefixed ciphertext.
func (ChaCha20Poly1305) Decrypt(key, ciphertext []byte) ([]byte, error) {
	aead, err := newChaCha(key)
	if err != nil {
		return nil, err
	}
	return open(aead, ciphertext)
}

// Algorithm returns AlgChaCha20Poly1305.
func (ChaCha20Poly1305) Algorithm() Algorithm { return AlgChaCha20Poly1305 }

// Authenticated returns true.
func (ChaCha20Poly1305) Authenticated() bool { return true }

func newAESGCM(key []byte) (cipher.AEAD, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func newChaCha(key []byte) (cipher.AEAD, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create chacha20poly1305: %w", err)
	}
	return aead, nil
}

func seal(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	// Seal appends to nonce, so the nonce ends up as the prefix.
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func open(aead cipher.AEAD, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}
	nonce := ciphertext[:NonceSize]
	plaintext, err := aead.Open(nil, nonce, ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// SplitNonce splits AEAD output into its nonce and the ciphertext+tag.
func SplitNonce(sealed []byte) (nonce, ciphertext []byte, err error) {
	if len(sealed) < NonceSize+TagSize {
		return nil, nil, ErrInvalidCiphertext
	}
	return sealed[:NonceSize], sealed[NonceSize:], nil
}

// JoinNonce is the inverse of SplitNonce.
func JoinNonce(nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceSize || len(ciphertext) < TagSize {
		return nil, ErrInvalidCiphertext
	}
	out := make([]byte, 0, len(nonce)+len(ciphertext))
	return append(append(out, nonce...), ciphertext...), nil
}
