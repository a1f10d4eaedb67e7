package vault

import (
	"time"

	"github.com/awnumar/memguard"

	"github.com/abdul-hamid-achik/safekey/internal/keystore"
)

// Session holds the material released by a successful unlock. The private
// key and TOTP secret live in locked, guarded memory until Destroy.
type Session struct {
	PublicKey     string
	Scheme        keystore.Scheme
	QuestionIndex *int
	UnlockedAt    time.Time

	key    *memguard.LockedBuffer
	secret *memguard.LockedBuffer
}

// newSession moves privateKey and secret into locked memory. Both source
// slices are wiped.
func newSession(c *keystore.Container, scheme keystore.Scheme, privateKey, secret []byte, now time.Time) *Session {
	s := &Session{
		PublicKey:     c.PublicKey,
		Scheme:        scheme,
		QuestionIndex: c.QuestionIndex,
		UnlockedAt:    now.UTC(),
		key:           memguard.NewBufferFromBytes(privateKey),
	}
	s.key.Freeze()
	if len(secret) > 0 {
		s.secret = memguard.NewBufferFromBytes(secret)
		s.secret.Freeze()
	}
	return s
}

// PrivateKey returns a copy of the raw private key string.
func (s *Session) PrivateKey() (string, error) {
	if !s.alive() {
		return "", ErrDestroyed
	}
	return string(s.key.Bytes()), nil
}

// WithPrivateKey calls fn with the key bytes without copying them out of
// locked memory. fn must not retain or modify the slice.
func (s *Session) WithPrivateKey(fn func(key []byte) error) error {
	if !s.alive() {
		return ErrDestroyed
	}
	return fn(s.key.Bytes())
}

// TOTPSecret returns the base32 TOTP secret recovered from a triple-factor
// payload. It is empty for password containers.
func (s *Session) TOTPSecret() (string, error) {
	if !s.alive() {
		return "", ErrDestroyed
	}
	if s.secret == nil {
		return "", nil
	}
	return string(s.secret.Bytes()), nil
}

// Destroy wipes the key material. It is safe to call more than once.
func (s *Session) Destroy() {
	if s.key != nil {
		s.key.Destroy()
	}
	if s.secret != nil {
		s.secret.Destroy()
	}
}

// Destroyed reports whether Destroy has been called.
func (s *Session) Destroyed() bool {
	return !s.alive()
}

func (s *Session) alive() bool {
	return s != nil && s.key != nil && s.key.IsAlive()
}
