// Package vault provides high-level vault operations that orchestrate
// key derivation, encryption, the hardware binding and the TOTP gate.
//
// A Vault is stateless between calls. Every create or unlock works on one
// keystore.Container and returns either a container or a Session.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/safekey/internal/crypto"
	"github.com/abdul-hamid-achik/safekey/internal/fsutil"
	"github.com/abdul-hamid-achik/safekey/internal/hardware"
	"github.com/abdul-hamid-achik/safekey/internal/kdf"
	"github.com/abdul-hamid-achik/safekey/internal/keystore"
	"github.com/abdul-hamid-achik/safekey/internal/logging"
	"github.com/abdul-hamid-achik/safekey/internal/metrics"
	"github.com/abdul-hamid-achik/safekey/internal/store"
	"github.com/abdul-hamid-achik/safekey/internal/totp"
	"github.com/abdul-hamid-achik/safekey/internal/validation"
)

// Operation names used for logging, metrics and the audit trail.
const (
	OpCreate  = "create"
	OpUnlock  = "unlock"
	OpBackup  = "backup"
	OpRestore = "restore"
)

// Vault orchestrates crypto and keystore operations.
type Vault struct {
	source   hardware.Source
	cipher   crypto.Cipher
	scheme   keystore.Scheme
	now      func() time.Time
	logger   *slog.Logger
	issuer   string
	account  string
	keyCheck func(privateKey string) error
	store    store.Store
	metrics  *metrics.Metrics
}

// Option configures a Vault.
type Option func(*Vault)

// WithFingerprintSource sets where the hardware fingerprint comes from.
func WithFingerprintSource(s hardware.Source) Option {
	return func(v *Vault) { v.source = s }
}

// WithCipher sets the AEAD cipher for password_aead containers.
func WithCipher(c crypto.Cipher) Option {
	return func(v *Vault) { v.cipher = c }
}

// WithPasswordScheme sets the scheme used for password containers and
// recovery copies when a request does not name one.
func WithPasswordScheme(s keystore.Scheme) Option {
	return func(v *Vault) { v.scheme = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) { v.logger = l }
}

// WithIssuer sets the TOTP issuer label.
func WithIssuer(issuer string) Option {
	return func(v *Vault) { v.issuer = issuer }
}

// WithAccount sets the TOTP account label.
func WithAccount(account string) Option {
	return func(v *Vault) { v.account = account }
}

// WithKeyCheck sets the validator for raw private key strings. It runs on
// input at create time and on output of unauthenticated decryptions.
func WithKeyCheck(fn func(privateKey string) error) Option {
	return func(v *Vault) { v.keyCheck = fn }
}

// WithStore records created containers and unlock attempts in s.
func WithStore(s store.Store) Option {
	return func(v *Vault) { v.store = s }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Vault) { v.metrics = m }
}

// New creates a Vault. Without options it reads the real hardware and
// writes AES-256-GCM password_aead containers.
func New(opts ...Option) *Vault {
	v := &Vault{
		cipher:   crypto.Default(),
		scheme:   keystore.SchemePasswordAEAD,
		now:      time.Now,
		logger:   slog.Default(),
		issuer:   totp.DefaultIssuer,
		account:  totp.DefaultAccount,
		keyCheck: validation.PrivateKey,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.source == nil {
		v.source = hardware.NewCollector(
			hardware.WithLogger(v.logger),
			hardware.WithFailureHook(v.metrics.ObserveProbeFailure),
		)
	}
	return v
}

// PasswordRequest describes a single-password container.
type PasswordRequest struct {
	PrivateKey string
	PublicKey  string
	Password   string
	// Scheme is password_only or password_aead; empty uses the vault default.
	Scheme keystore.Scheme
	// Path, when set, is where the container is written.
	Path string
	// Overwrite allows replacing an existing file at Path.
	Overwrite bool
	// Note is stored in the container as a human hint.
	Note string
}

// CreatePassword encrypts a private key under a single password.
func (v *Vault) CreatePassword(ctx context.Context, req PasswordRequest) (c *keystore.Container, err error) {
	scheme := req.Scheme
	if scheme == "" {
		scheme = v.scheme
	}
	defer func() { v.observe(ctx, OpCreate, scheme, c, req.Path, err) }()

	if err := validation.Password(req.Password); err != nil {
		return nil, err
	}
	c, err = v.passwordContainer(scheme, req.PrivateKey, req.PublicKey, req.Password)
	if err != nil {
		return nil, err
	}
	c.Note = req.Note

	if req.Path != "" {
		if err := v.save(req.Path, c, req.Overwrite); err != nil {
			return nil, err
		}
		v.register(ctx, c, req.Path, "")
	}
	return c, nil
}

func (v *Vault) passwordContainer(scheme keystore.Scheme, privateKey, publicKey, password string) (*keystore.Container, error) {
	switch scheme {
	case keystore.SchemePasswordOnly, keystore.SchemePasswordAEAD:
	case keystore.SchemeTripleFactor:
		return nil, fmt.Errorf("%w: use CreateTripleFactor", ErrWrongScheme)
	default:
		return nil, fmt.Errorf("%w: %q", keystore.ErrUnknownScheme, scheme)
	}
	if err := v.keyCheck(privateKey); err != nil {
		return nil, err
	}
	if err := validation.PublicKey(publicKey); err != nil {
		return nil, err
	}

	key := kdf.PasswordKey(password)
	defer crypto.ZeroBytes(key)

	plaintext := []byte(privateKey)
	defer crypto.ZeroBytes(plaintext)

	blob, err := keystore.Encrypt(scheme, v.cipher, key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt private key: %w", err)
	}
	v.metrics.ObserveEncryption("encrypt")

	return &keystore.Container{
		EncryptedPrivateKey: blob,
		PublicKey:           publicKey,
		EncryptionType:      scheme,
		CreatedAt:           v.now().UTC().Truncate(time.Second),
	}, nil
}

// UnlockPassword opens a password_only or password_aead container. The
// first failure is terminal.
func (v *Vault) UnlockPassword(ctx context.Context, c *keystore.Container, password string) (s *Session, err error) {
	scheme, err := c.Scheme()
	if err != nil {
		return nil, err
	}
	if scheme == keystore.SchemeTripleFactor {
		return nil, fmt.Errorf("%w: container requires triple-factor unlock", ErrWrongScheme)
	}
	defer func() { v.metrics.ObserveOperation(OpUnlock, string(scheme), err) }()

	plaintext, err := v.decryptPassword(c, scheme, password)
	if err != nil {
		return nil, err
	}

	v.log(ctx).Debug("container unlocked", "scheme", scheme, "public_key", c.PublicKey)
	return newSession(c, scheme, plaintext, nil, v.now()), nil
}

// decryptPassword tries the password key and, for password_only containers,
// the legacy half-digest key. Output that fails the key check counts as a
// decryption failure. New containers are never written with the legacy key.
func (v *Vault) decryptPassword(c *keystore.Container, scheme keystore.Scheme, password string) ([]byte, error) {
	derive := []func(string) []byte{kdf.PasswordKey}
	if scheme == keystore.SchemePasswordOnly {
		derive = append(derive, kdf.LegacyPasswordKey)
	}

	var lastErr error
	for _, fn := range derive {
		key := fn(password)
		plaintext, err := c.Decrypt(key)
		crypto.ZeroBytes(key)
		v.metrics.ObserveEncryption("decrypt")
		if err != nil {
			if !isDecryptFailure(err) {
				return nil, err
			}
			lastErr = err
			continue
		}
		if err := v.keyCheck(string(plaintext)); err != nil {
			crypto.ZeroBytes(plaintext)
			lastErr = crypto.ErrInvalidPlaintext
			continue
		}
		return plaintext, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, lastErr)
}

// Open loads the container at path and unlocks it with factors from src,
// choosing the flow from the container's scheme.
func (v *Vault) Open(ctx context.Context, path string, src FactorSource) (s *Session, err error) {
	c, err := keystore.Load(path)
	if err != nil {
		return nil, err
	}
	scheme, err := c.Scheme()
	if err != nil {
		return nil, err
	}
	defer func() { v.audit(ctx, unlockAction(err), scheme, c.PublicKey, path, err) }()

	if scheme != keystore.SchemeTripleFactor {
		var password string
		if password, err = src.MasterPassword(ctx); err != nil {
			return nil, err
		}
		s, err = v.UnlockPassword(ctx, c, password)
	} else {
		var u *Unlocker
		u, err = v.NewUnlocker(c, src)
		if err != nil {
			return nil, err
		}
		s, err = u.Run(ctx)
	}
	if err != nil {
		return nil, err
	}

	if v.store != nil {
		if terr := v.store.TouchWallet(c.PublicKey, v.now()); terr != nil && !errors.Is(terr, store.ErrWalletNotFound) {
			v.log(ctx).Warn("failed to update index", "error", terr)
		}
	}
	return s, nil
}

// Fingerprint returns the hardware fingerprint of this machine.
func (v *Vault) Fingerprint(ctx context.Context) (string, error) {
	fp, err := v.source.Fingerprint(ctx)
	if err != nil {
		return "", fmt.Errorf("collect hardware fingerprint: %w", err)
	}
	return fp, nil
}

// DeriveTOTP rebuilds the TOTP manager bound to this machine and password.
// It recovers the second factor without any container.
func (v *Vault) DeriveTOTP(ctx context.Context, password string) (*totp.Manager, error) {
	if password == "" {
		return nil, validation.ErrPasswordTooShort
	}
	fp, err := v.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	return v.totpManager(kdf.TOTPSecret(fp, password, v.issuer, v.account))
}

func (v *Vault) totpManager(secret string) (*totp.Manager, error) {
	cfg := totp.DefaultConfig()
	cfg.Secret = secret
	cfg.Issuer = v.issuer
	cfg.Account = v.account
	return totp.NewManager(cfg, totp.WithClock(v.now), totp.WithVerifyHook(v.metrics.ObserveTOTP))
}

func (v *Vault) save(path string, c *keystore.Container, overwrite bool) error {
	if !overwrite && fsutil.Exists(path) {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err := keystore.Save(path, c); err != nil {
		return fmt.Errorf("save keystore: %w", err)
	}
	return nil
}

// log returns the vault logger tagged with the context's operation ID.
func (v *Vault) log(ctx context.Context) *slog.Logger {
	if id := logging.GetOperationID(ctx); id != "" {
		return v.logger.With("operation_id", id)
	}
	return v.logger
}

// register adds the container to the index. Index failures are logged and
// never fail the operation: the container file is the source of truth.
func (v *Vault) register(ctx context.Context, c *keystore.Container, path, recoveryPath string) {
	if v.store == nil {
		return
	}
	scheme, _ := c.Scheme()
	alg, _ := c.Cipher()
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	rec := &store.WalletRecord{
		PublicKey:     c.PublicKey,
		Path:          path,
		Scheme:        string(scheme),
		Cipher:        string(alg),
		QuestionIndex: c.QuestionIndex,
		RecoveryPath:  recoveryPath,
	}
	if err := v.store.PutWallet(rec); err != nil {
		v.log(ctx).Warn("failed to index wallet", "error", err)
		return
	}
	if def, err := v.store.GetConfig(store.ConfigDefaultWallet); def == "" || errors.Is(err, store.ErrNotFound) {
		if err := v.store.SetConfig(store.ConfigDefaultWallet, c.PublicKey); err != nil {
			v.log(ctx).Warn("failed to set default wallet", "error", err)
		}
	}
}

// observe finishes a create-like operation: metrics, log line and audit entry.
func (v *Vault) observe(ctx context.Context, op string, scheme keystore.Scheme, c *keystore.Container, path string, err error) {
	v.metrics.ObserveOperation(op, string(scheme), err)
	if err != nil {
		v.log(ctx).Debug("operation failed", "operation", op, "scheme", scheme, "error", err)
		return
	}
	v.log(ctx).Info("operation completed", "operation", op, "scheme", scheme, "public_key", c.PublicKey)
	if path != "" {
		v.audit(ctx, op, scheme, c.PublicKey, path, nil)
	}
}

func (v *Vault) audit(ctx context.Context, action string, scheme keystore.Scheme, publicKey, path string, opErr error) {
	if v.store == nil {
		return
	}
	entry := &store.AuditEntry{
		Action:    action,
		Scheme:    string(scheme),
		PublicKey: publicKey,
		Path:      path,
		Timestamp: v.now().UTC(),
	}
	if opErr != nil {
		entry.Metadata = map[string]any{"reason": failureReason(opErr)}
	}
	if err := v.store.AppendAudit(entry); err != nil {
		v.log(ctx).Warn("failed to append audit entry", "error", err)
	}
}

func unlockAction(err error) string {
	if err != nil {
		return store.ActionUnlockFailed
	}
	return store.ActionUnlock
}

// failureReason maps an error to a short audit label that carries no secrets.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, hardware.ErrNoComponents):
		return "no_hardware"
	case errors.Is(err, keystore.ErrSchemeMismatch):
		return "scheme_mismatch"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func isDecryptFailure(err error) bool {
	return errors.Is(err, crypto.ErrDecryptionFailed) ||
		errors.Is(err, crypto.ErrInvalidPlaintext) ||
		errors.Is(err, crypto.ErrInvalidCiphertext)
}
