// Package totp implements the time-based one-time password gate.
//
// Codes follow RFC 6238 and are produced by github.com/pquerna/otp. Verification
// accepts the current step and one step either side, which tolerates up to one
// period of clock skew.
package totp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/abdul-hamid-achik/safekey/internal/fsutil"
	"github.com/abdul-hamid-achik/safekey/internal/kdf"
	"github.com/abdul-hamid-achik/safekey/internal/validation"
)

const (
	// DefaultIssuer is the issuer shown in authenticator apps.
	DefaultIssuer = "SafeKey"
	// DefaultAccount is the account label shown in authenticator apps.
	DefaultAccount = "wallet"
	// DefaultAlgorithm is the HMAC hash.
	DefaultAlgorithm = "SHA1"
	// DefaultDigits is the code length.
	DefaultDigits = 6
	// DefaultStep is the period in seconds.
	DefaultStep = 30

	// Skew is how many steps either side of now are accepted.
	Skew = 1
)

var (
	// ErrUnsupportedAlgorithm is returned for hashes other than SHA1, SHA256 and SHA512.
	ErrUnsupportedAlgorithm = errors.New("unsupported TOTP algorithm")
	// ErrInvalidSecret is returned when the secret is not valid base32.
	ErrInvalidSecret = errors.New("invalid TOTP secret")
	// ErrInvalidConfig is returned for non-positive steps or unsupported digit counts.
	ErrInvalidConfig = errors.New("invalid TOTP configuration")
	// ErrInvalidCount is returned when fewer than one backup code is requested.
	ErrInvalidCount = errors.New("backup code count must be at least 1")
)

// Config describes one TOTP credential.
type Config struct {
	Secret    string `json:"secret"`
	Issuer    string `json:"issuer"`
	Account   string `json:"account"`
	Algorithm string `json:"algorithm"`
	Digits    int    `json:"digits"`
	Step      uint64 `json:"step"`
}

// DefaultConfig returns a config with the standard parameters and no secret.
func DefaultConfig() Config {
	return Config{
		Issuer:    DefaultIssuer,
		Account:   DefaultAccount,
		Algorithm: DefaultAlgorithm,
		Digits:    DefaultDigits,
		Step:      DefaultStep,
	}
}

// Manager generates and verifies codes for a single Config.
type Manager struct {
	cfg      Config
	alg      otp.Algorithm
	now      func() time.Time
	onVerify func(ok bool)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithVerifyHook registers a callback run after every verification.
func WithVerifyHook(fn func(ok bool)) Option {
	return func(m *Manager) { m.onVerify = fn }
}

// NewManager validates cfg and returns a Manager for it.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	alg, err := parseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	if cfg.Digits != 6 && cfg.Digits != 8 {
		return nil, fmt.Errorf("%w: digits must be 6 or 8, got %d", ErrInvalidConfig, cfg.Digits)
	}
	if cfg.Step == 0 {
		return nil, fmt.Errorf("%w: step must be positive", ErrInvalidConfig)
	}
	if _, err := decodeSecret(cfg.Secret); err != nil {
		return nil, err
	}

	m := &Manager{cfg: cfg, alg: alg, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns a copy of the manager's configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// GenerateCode returns the code for the current step.
func (m *Manager) GenerateCode() (string, error) {
	return m.CodeAt(m.now())
}

// CodeAt returns the code for the step containing t.
func (m *Manager) CodeAt(t time.Time) (string, error) {
	return totp.GenerateCodeCustom(m.cfg.Secret, t, totp.ValidateOpts{
		Period:    uint(m.cfg.Step),
		Digits:    otp.Digits(m.cfg.Digits),
		Algorithm: m.alg,
	})
}

// Verify reports whether code is valid now.
func (m *Manager) Verify(code string) bool {
	ok, _ := m.VerifyExtended(code)
	return ok
}

// VerifyAt reports whether code is valid at t.
func (m *Manager) VerifyAt(code string, t time.Time) bool {
	ok, _ := m.verify(code, t)
	return ok
}

// TraceStep is one checked step in a verification trace.
type TraceStep struct {
	Offset int       `json:"offset"`
	Time   time.Time `json:"time"`
	Code   string    `json:"code"`
}

// Trace records what a verification compared against.
type Trace struct {
	Now     time.Time   `json:"now"`
	Current string      `json:"current"`
	Steps   []TraceStep `json:"steps"`
	Matched *TraceStep  `json:"matched,omitempty"`
}

// String formats the trace for troubleshooting clock drift.
func (t *Trace) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "now %d (%s), current code %s\n", t.Now.Unix(), t.Now.UTC().Format(time.RFC3339), t.Current)
	for _, s := range t.Steps {
		mark := ""
		if t.Matched != nil && t.Matched.Offset == s.Offset {
			mark = " <- match"
		}
		fmt.Fprintf(&b, "  step %+d: %d %s%s\n", s.Offset, s.Time.Unix(), s.Code, mark)
	}
	return b.String()
}

// VerifyExtended verifies code now and also returns the codes that were checked.
func (m *Manager) VerifyExtended(code string) (bool, *Trace) {
	return m.verify(code, m.now())
}

func (m *Manager) verify(code string, now time.Time) (bool, *Trace) {
	trace := &Trace{Now: now}
	trace.Current, _ = m.CodeAt(now)

	ok := false
	defer func() {
		if m.onVerify != nil {
			m.onVerify(ok)
		}
	}()

	code = strings.TrimSpace(code)
	if validation.Code(code, m.cfg.Digits) != nil {
		return false, trace
	}

	step := time.Duration(m.cfg.Step) * time.Second
	for offset := -Skew; offset <= Skew; offset++ {
		at := now.Add(time.Duration(offset) * step)
		if at.Unix() <= 0 {
			continue
		}
		expected, err := m.CodeAt(at)
		if err != nil {
			continue
		}
		trace.Steps = append(trace.Steps, TraceStep{Offset: offset, Time: at, Code: expected})
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			ok = true
			trace.Matched = &trace.Steps[len(trace.Steps)-1]
			return true, trace
		}
	}
	return false, trace
}

// CodesForWindows returns 2n+1 codes centered on now, oldest first.
func (m *Manager) CodesForWindows(n int) ([]TraceStep, error) {
	if n < 0 {
		n = 0
	}
	now := m.now()
	step := time.Duration(m.cfg.Step) * time.Second

	codes := make([]TraceStep, 0, 2*n+1)
	for offset := -n; offset <= n; offset++ {
		at := now.Add(time.Duration(offset) * step)
		if at.Unix() <= 0 {
			continue
		}
		code, err := m.CodeAt(at)
		if err != nil {
			return nil, err
		}
		codes = append(codes, TraceStep{Offset: offset, Time: at, Code: code})
	}
	return codes, nil
}

// RemainingTime returns how long the current code stays valid.
func (m *Manager) RemainingTime() time.Duration {
	now := m.now().Unix()
	step := int64(m.cfg.Step)
	return time.Duration(step-now%step) * time.Second
}

// GenerateSecret returns a random 160-bit base32 secret for simple 2FA.
func GenerateSecret(issuer, account string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		SecretSize:  kdf.TOTPSecretSize,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return key.Secret(), nil
}

// GenerateBackupCodes returns n random codes formatted as XXXX-XXXX.
// They are shown to the user once and are never accepted by the unlock flow.
func GenerateBackupCodes(n int) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidCount, n)
	}
	codes := make([]string, 0, n)
	limit := big.NewInt(100_000_000)
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		s := fmt.Sprintf("%08d", v.Int64())
		codes = append(codes, s[:4]+"-"+s[4:])
	}
	return codes, nil
}

// SaveConfig writes cfg as JSON with 0600 permissions.
func SaveConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode TOTP config: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data, 0o600)
}

// LoadConfig reads a config written by SaveConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read TOTP config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse TOTP config: %w", err)
	}
	if _, err := NewManager(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseAlgorithm(name string) (otp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "SHA1", "":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSecret)
	}
	raw, err := kdf.Base32.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return raw, nil
}
