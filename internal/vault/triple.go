package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/awnumar/memguard"

	"github.com/abdul-hamid-achik/safekey/internal/crypto"
	"github.com/abdul-hamid-achik/safekey/internal/fsutil"
	"github.com/abdul-hamid-achik/safekey/internal/kdf"
	"github.com/abdul-hamid-achik/safekey/internal/keystore"
	"github.com/abdul-hamid-achik/safekey/internal/question"
	"github.com/abdul-hamid-achik/safekey/internal/totp"
	"github.com/abdul-hamid-achik/safekey/internal/validation"
)

// Enrollment is the first half of creating a triple-factor container. It
// binds the master password to this machine and exposes the derived TOTP
// credential so the user can provision an authenticator app before anything
// is written.
type Enrollment struct {
	// TOTP generates and verifies codes for the derived secret.
	TOTP *totp.Manager

	fingerprint *memguard.LockedBuffer
	password    *memguard.LockedBuffer
}

// Destroy wipes the fingerprint and password held by the enrollment.
func (e *Enrollment) Destroy() {
	if e.fingerprint != nil {
		e.fingerprint.Destroy()
	}
	if e.password != nil {
		e.password.Destroy()
	}
}

func (e *Enrollment) alive() bool {
	return e != nil && e.fingerprint != nil && e.fingerprint.IsAlive() &&
		e.password != nil && e.password.IsAlive()
}

// Enroll collects the hardware fingerprint, enforces the password policy
// and derives the TOTP secret bound to both.
func (v *Vault) Enroll(ctx context.Context, password string) (*Enrollment, error) {
	if err := validation.Password(password); err != nil {
		return nil, err
	}
	fp, err := v.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	m, err := v.totpManager(kdf.TOTPSecret(fp, password, v.issuer, v.account))
	if err != nil {
		return nil, fmt.Errorf("derive TOTP secret: %w", err)
	}

	v.log(ctx).Debug("enrollment ready", "issuer", v.issuer, "account", v.account)
	return &Enrollment{
		TOTP:        m,
		fingerprint: memguard.NewBufferFromBytes([]byte(fp)),
		password:    memguard.NewBufferFromBytes([]byte(password)),
	}, nil
}

// TripleFactorRequest describes a triple-factor container.
type TripleFactorRequest struct {
	PrivateKey    string
	PublicKey     string
	QuestionIndex int
	Answer        string
	// Code is a live code from the enrolled authenticator. It proves the
	// authenticator was provisioned before the container is written.
	Code string
	// Path, when set, is where the container is written.
	Path      string
	Overwrite bool
	// Recovery also produces a password-only recovery container. It is
	// written next to Path when Path is set.
	Recovery bool
}

// TripleFactorResult is the outcome of CreateTripleFactor.
type TripleFactorResult struct {
	Container *keystore.Container
	// Recovery is nil unless requested.
	Recovery     *keystore.Container
	RecoveryPath string
}

// CreateTripleFactor encrypts a private key under the hardware fingerprint,
// master password and security answer held by e.
func (v *Vault) CreateTripleFactor(ctx context.Context, e *Enrollment, req TripleFactorRequest) (res *TripleFactorResult, err error) {
	var created *keystore.Container
	defer func() { v.observe(ctx, OpCreate, keystore.SchemeTripleFactor, created, req.Path, err) }()

	if !e.alive() {
		return nil, ErrDestroyed
	}
	if err := v.keyCheck(req.PrivateKey); err != nil {
		return nil, err
	}
	if err := validation.PublicKey(req.PublicKey); err != nil {
		return nil, err
	}
	sel, err := question.Select(req.QuestionIndex, req.Answer)
	if err != nil {
		return nil, err
	}
	if !e.TOTP.Verify(req.Code) {
		return nil, fmt.Errorf("%w: confirmation code rejected", ErrInvalidCode)
	}

	fp := string(e.fingerprint.Bytes())
	password := string(e.password.Bytes())

	key := kdf.TripleFactorKey(fp, password, sel.Answer)
	defer crypto.ZeroBytes(key)

	payload, err := keystore.NewPayload(req.PrivateKey, e.TOTP.Config().Secret, sel.Index, v.now()).Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	defer crypto.ZeroBytes(payload)

	blob, err := keystore.Encrypt(keystore.SchemeTripleFactor, nil, key, payload)
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}
	v.metrics.ObserveEncryption("encrypt")

	index := sel.Index
	c := &keystore.Container{
		EncryptedPrivateKey: blob,
		PublicKey:           req.PublicKey,
		EncryptionType:      keystore.SchemeTripleFactor,
		QuestionIndex:       &index,
		CreatedAt:           v.now().UTC().Truncate(time.Second),
	}
	res = &TripleFactorResult{Container: c}

	if req.Recovery {
		rc, err := v.passwordContainer(v.scheme, req.PrivateKey, req.PublicKey, password)
		if err != nil {
			return nil, fmt.Errorf("create recovery keystore: %w", err)
		}
		rc.Note = keystore.RecoveryNote
		res.Recovery = rc
		if req.Path != "" {
			res.RecoveryPath = keystore.RecoveryPath(filepath.Dir(req.Path), req.PublicKey)
		}
	}

	if req.Path != "" {
		if err := v.saveTriple(req, res); err != nil {
			return nil, err
		}
		v.register(ctx, c, req.Path, res.RecoveryPath)
	}

	created = c
	return res, nil
}

// saveTriple writes the recovery container before the main one, so a failed
// write never leaves an unindexed triple-factor file behind. A recovery file
// created here is removed again if the main write fails.
func (v *Vault) saveTriple(req TripleFactorRequest, res *TripleFactorResult) error {
	if !req.Overwrite && fsutil.Exists(req.Path) {
		return fmt.Errorf("%w: %s", ErrExists, req.Path)
	}

	created := false
	if res.RecoveryPath != "" {
		created = !fsutil.Exists(res.RecoveryPath)
		if err := v.save(res.RecoveryPath, res.Recovery, true); err != nil {
			return fmt.Errorf("write recovery keystore: %w", err)
		}
	}

	if err := v.save(req.Path, res.Container, req.Overwrite); err != nil {
		if created {
			if rerr := os.Remove(res.RecoveryPath); rerr != nil {
				v.logger.Warn("failed to remove recovery keystore", "path", res.RecoveryPath, "error", rerr)
			}
		}
		return err
	}
	return nil
}
