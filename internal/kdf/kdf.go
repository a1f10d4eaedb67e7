// Package kdf derives the symmetric keys and TOTP secrets used by SafeKey.
//
// Every path is deterministic: the same inputs always give the same output.
// The salts below are scheme-wide constants, not secrets. Changing any of them
// makes every existing container unreadable.
package kdf

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/abdul-hamid-achik/safekey/internal/crypto"
)

const (
	// PasswordSalt is appended to the password for the single-password key.
	PasswordSalt = "sol-safekey-v1-salt-2025"

	// TOTPSaltPrefix prefixes "<issuer>-<account>" to form the TOTP secret salt.
	TOTPSaltPrefix = "sol-safekey-2fa-"

	// TripleFactorSalt is the salt for the triple-factor key.
	TripleFactorSalt = "sol-safekey-triple-factor-v1"

	// TOTPIterations is the PBKDF2 iteration count for TOTP secrets.
	TOTPIterations = 100_000

	// TripleFactorIterations is the PBKDF2 iteration count for the triple-factor key.
	TripleFactorIterations = 200_000

	// TOTPSecretSize is the size of a derived TOTP secret in bytes (160 bits).
	TOTPSecretSize = 20
)

// Base32 is the encoding for TOTP secrets: RFC 4648 alphabet, no padding.
var Base32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// PasswordKey derives the single-password key: SHA-256(password ∥ PasswordSalt).
// All 32 bytes of the digest are used.
func PasswordKey(password string) []byte {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write([]byte(PasswordSalt))
	return h.Sum(nil)
}

// LegacyPasswordKey is the key older password_only files were written with:
// the first 16 bytes of SHA-256(password ∥ PasswordSalt), repeated. It is only
// ever used to read such files.
func LegacyPasswordKey(password string) []byte {
	sum := PasswordKey(password)
	defer crypto.ZeroBytes(sum)

	key := make([]byte, crypto.KeySize)
	copy(key, sum[:16])
	copy(key[16:], sum[:16])
	return key
}

// TOTPSecretBytes derives the raw 20-byte TOTP secret bound to a hardware
// fingerprint and master password.
func TOTPSecretBytes(fingerprint, password, issuer, account string) []byte {
	material := []byte(fingerprint + "::" + password)
	defer crypto.ZeroBytes(material)
	salt := []byte(fmt.Sprintf("%s%s-%s", TOTPSaltPrefix, issuer, account))
	return pbkdf2.Key(material, salt, TOTPIterations, TOTPSecretSize, sha256.New)
}

// TOTPSecret is TOTPSecretBytes encoded as unpadded base32.
func TOTPSecret(fingerprint, password, issuer, account string) string {
	raw := TOTPSecretBytes(fingerprint, password, issuer, account)
	defer crypto.ZeroBytes(raw)
	return Base32.EncodeToString(raw)
}

// TripleFactorKey derives the 32-byte key that protects a triple-factor
// container. The answer is normalized before use.
func TripleFactorKey(fingerprint, password, answer string) []byte {
	material := []byte("HW:" + fingerprint + "|PASS:" + password + "|QA:" + NormalizeAnswer(answer))
	defer crypto.ZeroBytes(material)
	return pbkdf2.Key(material, []byte(TripleFactorSalt), TripleFactorIterations, crypto.KeySize, sha256.New)
}

// NormalizeAnswer trims surrounding whitespace and lower-cases a security answer.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
