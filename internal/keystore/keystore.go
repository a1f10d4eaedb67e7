// Package keystore defines the persisted credential container and its
// scheme-specific ciphertext encodings.
//
// A container is a small JSON document:
//
//	{
//	  "encrypted_private_key": <scheme-specific>,
//	  "public_key": "<clear public identifier>",
//	  "encryption_type": "password_only" | "password_aead" | "triple_factor_v1",
//	  "question_index": 3,
//	  "created_at": "2025-01-02T15:04:05Z"
//	}
//
// The scheme alone decides how encrypted_private_key is parsed. A blob whose
// JSON shape does not match its scheme is rejected with ErrSchemeMismatch.
package keystore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/safekey/internal/crypto"
	"github.com/abdul-hamid-achik/safekey/internal/fsutil"
	"github.com/abdul-hamid-achik/safekey/internal/validation"
)

// Scheme identifies how a container was encrypted.
type Scheme string

const (
	// SchemePasswordOnly is the legacy keystream cipher under the
	// single-password key. The blob is one base64 string.
	SchemePasswordOnly Scheme = "password_only"

	// SchemePasswordAEAD is an AEAD cipher under the single-password key.
	// The blob is an object {iv, ciphertext, cipher}.
	SchemePasswordAEAD Scheme = "password_aead"

	// SchemeTripleFactor is AES-256-GCM under the triple-factor key. The blob
	// is base64(nonce ∥ ciphertext ∥ tag) and the plaintext is a Payload.
	SchemeTripleFactor Scheme = "triple_factor_v1"
)

// FileMode is the permission used for every container file.
const FileMode = 0o600

// RecoverySuffix is appended to the public key prefix to name a recovery container.
const RecoverySuffix = "_keystore.json"

// RecoveryNote is stored in recovery containers.
const RecoveryNote = "This file can be unlocked on any device with the master password."

var (
	// ErrNotFound is returned when a container file does not exist.
	ErrNotFound = errors.New("keystore file not found")
	// ErrMalformed is returned for invalid JSON or invalid base64.
	ErrMalformed = errors.New("malformed keystore")
	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("keystore is missing a required field")
	// ErrUnknownScheme is returned for an unrecognised encryption type.
	ErrUnknownScheme = errors.New("unknown encryption type")
	// ErrSchemeMismatch is returned when the blob does not fit the scheme.
	ErrSchemeMismatch = errors.New("encrypted data does not match encryption type")
)

// ParseScheme validates a scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case SchemePasswordOnly, SchemePasswordAEAD, SchemeTripleFactor:
		return Scheme(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
}

// Container is the persisted EncryptedCredential.
type Container struct {
	EncryptedPrivateKey json.RawMessage `json:"encrypted_private_key"`
	PublicKey           string          `json:"public_key"`
	EncryptionType      Scheme          `json:"encryption_type,omitempty"`
	// Version is only present in older triple-factor files that predate
	// encryption_type.
	Version       string    `json:"version,omitempty"`
	QuestionIndex *int      `json:"question_index,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Note          string    `json:"note,omitempty"`
}

// Scheme returns the container's scheme, resolving the legacy version field.
func (c *Container) Scheme() (Scheme, error) {
	if c.EncryptionType != "" {
		return ParseScheme(string(c.EncryptionType))
	}
	if c.Version != "" {
		if Scheme(c.Version) == SchemeTripleFactor {
			return SchemeTripleFactor, nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, c.Version)
	}
	return "", fmt.Errorf("%w: encryption_type", ErrMissingField)
}

// Legacy reports whether the container uses the pre-encryption_type layout.
// Legacy triple-factor blobs were encrypted with the keystream cipher.
func (c *Container) Legacy() bool {
	return c.EncryptionType == "" && c.Version != ""
}

// Validate checks the container's fields without decrypting anything.
func (c *Container) Validate() error {
	if len(c.EncryptedPrivateKey) == 0 || string(c.EncryptedPrivateKey) == "null" {
		return fmt.Errorf("%w: encrypted_private_key", ErrMissingField)
	}
	if c.PublicKey == "" {
		return fmt.Errorf("%w: public_key", ErrMissingField)
	}
	if err := validation.PublicKey(c.PublicKey); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	scheme, err := c.Scheme()
	if err != nil {
		return err
	}
	if scheme == SchemeTripleFactor && c.QuestionIndex == nil {
		return fmt.Errorf("%w: question_index", ErrMissingField)
	}
	return nil
}

// AEADBlob is the structured blob of a password_aead container.
type AEADBlob struct {
	IV         string           `json:"iv"`
	Ciphertext string           `json:"ciphertext"`
	Cipher     crypto.Algorithm `json:"cipher,omitempty"`
}

// Encrypt produces the encrypted_private_key value for scheme.
// password_only requires the keystream cipher and triple_factor_v1 ignores
// c and always uses AES-256-GCM.
func Encrypt(scheme Scheme, c crypto.Cipher, key, plaintext []byte) (json.RawMessage, error) {
	switch scheme {
	case SchemePasswordOnly:
		ct, err := crypto.Keystream{}.Encrypt(key, plaintext)
		if err != nil {
			return nil, err
		}
		return json.Marshal(base64.StdEncoding.EncodeToString(ct))

	case SchemePasswordAEAD:
		if c == nil {
			c = crypto.Default()
		}
		if !c.Authenticated() {
			return nil, fmt.Errorf("%w: %s is not an AEAD cipher", ErrSchemeMismatch, c.Algorithm())
		}
		sealed, err := c.Encrypt(key, plaintext)
		if err != nil {
			return nil, err
		}
		nonce, ct, err := crypto.SplitNonce(sealed)
		if err != nil {
			return nil, err
		}
		return json.Marshal(AEADBlob{
			IV:         base64.StdEncoding.EncodeToString(nonce),
			Ciphertext: base64.StdEncoding.EncodeToString(ct),
			Cipher:     c.Algorithm(),
		})

	case SchemeTripleFactor:
		sealed, err := crypto.AESGCM{}.Encrypt(key, plaintext)
		if err != nil {
			return nil, err
		}
		return json.Marshal(base64.StdEncoding.EncodeToString(sealed))

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// Decrypt returns the plaintext of the container's blob under key.
//
// For keystream blobs a wrong key cannot be detected cryptographically; the
// output is rejected with crypto.ErrInvalidPlaintext when it is not UTF-8.
func (c *Container) Decrypt(key []byte) ([]byte, error) {
	scheme, err := c.Scheme()
	if err != nil {
		return nil, err
	}

	switch scheme {
	case SchemePasswordOnly:
		raw, err := c.stringBlob()
		if err != nil {
			return nil, err
		}
		return openKeystream(key, raw)

	case SchemePasswordAEAD:
		var blob AEADBlob
		if err := c.objectBlob(&blob); err != nil {
			return nil, err
		}
		return openAEAD(key, blob)

	case SchemeTripleFactor:
		raw, err := c.stringBlob()
		if err != nil {
			return nil, err
		}
		if c.Legacy() {
			return openKeystream(key, raw)
		}
		return crypto.AESGCM{}.Decrypt(key, raw)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
}

// Cipher returns the algorithm that protects the container's blob.
func (c *Container) Cipher() (crypto.Algorithm, error) {
	scheme, err := c.Scheme()
	if err != nil {
		return "", err
	}
	switch {
	case scheme == SchemePasswordOnly, c.Legacy():
		return crypto.AlgKeystream, nil
	case scheme == SchemePasswordAEAD:
		var blob AEADBlob
		if err := c.objectBlob(&blob); err != nil {
			return "", err
		}
		if blob.Cipher == "" {
			return crypto.AlgAES256GCM, nil
		}
		return blob.Cipher, nil
	default:
		return crypto.AlgAES256GCM, nil
	}
}

func (c *Container) stringBlob() ([]byte, error) {
	var s string
	if err := json.Unmarshal(c.EncryptedPrivateKey, &s); err != nil {
		return nil, fmt.Errorf("%w: expected a base64 string", ErrSchemeMismatch)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypted_private_key is not base64", ErrMalformed)
	}
	return raw, nil
}

func (c *Container) objectBlob(blob *AEADBlob) error {
	if err := json.Unmarshal(c.EncryptedPrivateKey, blob); err != nil {
		return fmt.Errorf("%w: expected an {iv, ciphertext} object", ErrSchemeMismatch)
	}
	if blob.IV == "" {
		return fmt.Errorf("%w: iv", ErrMissingField)
	}
	if blob.Ciphertext == "" {
		return fmt.Errorf("%w: ciphertext", ErrMissingField)
	}
	return nil
}

func openKeystream(key, raw []byte) ([]byte, error) {
	out, err := crypto.Keystream{}.Decrypt(key, raw)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(out) {
		crypto.ZeroBytes(out)
		return nil, crypto.ErrInvalidPlaintext
	}
	return out, nil
}

func openAEAD(key []byte, blob AEADBlob) ([]byte, error) {
	alg := blob.Cipher
	if alg == "" {
		alg = crypto.AlgAES256GCM
	}
	c, err := crypto.New(alg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !c.Authenticated() {
		return nil, fmt.Errorf("%w: %s is not an AEAD cipher", ErrSchemeMismatch, alg)
	}

	nonce, err := base64.StdEncoding.DecodeString(blob.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: iv is not base64", ErrMalformed)
	}
	ct, err := base64.StdEncoding.DecodeString(blob.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not base64", ErrMalformed)
	}
	sealed, err := crypto.JoinNonce(nonce, ct)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(key, sealed)
}

// Parse decodes and validates a container document.
func Parse(data []byte) (*Container, error) {
	var c Container
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Marshal encodes the container as indented JSON.
func (c *Container) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Load reads and validates the container at path.
func Load(path string) (*Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	return Parse(data)
}

// Save validates c and writes it to path atomically with FileMode.
func Save(path string, c *Container) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode keystore: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data, FileMode)
}

// PublicKeyOf returns the clear public identifier stored at path.
func PublicKeyOf(path string) (string, error) {
	c, err := Load(path)
	if err != nil {
		return "", err
	}
	return c.PublicKey, nil
}

// RecoveryPath returns the recovery container path for publicKey inside dir.
func RecoveryPath(dir, publicKey string) string {
	prefix := publicKey
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return filepath.Join(dir, prefix+RecoverySuffix)
}
