package vault

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/safekey/internal/crypto"
	"github.com/abdul-hamid-achik/safekey/internal/kdf"
	"github.com/abdul-hamid-achik/safekey/internal/keystore"
	"github.com/abdul-hamid-achik/safekey/internal/question"
)

// State is a step of the triple-factor unlock.
type State int

// Unlock states, in order. Unlocked and Failed are terminal.
const (
	StateCollectHardwareFingerprint State = iota
	StatePromptMasterPassword
	StatePromptSecurityAnswer
	StatePromptTOTPCode
	StateAttemptDecrypt
	StateUnlocked
	StateFailed
)

var stateNames = [...]string{
	StateCollectHardwareFingerprint: "collect_hardware_fingerprint",
	StatePromptMasterPassword:       "prompt_master_password",
	StatePromptSecurityAnswer:       "prompt_security_answer",
	StatePromptTOTPCode:             "prompt_totp_code",
	StateAttemptDecrypt:             "attempt_decrypt",
	StateUnlocked:                   "unlocked",
	StateFailed:                     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateUnlocked || s == StateFailed
}

// FactorSource supplies the user-held factors, usually by prompting.
type FactorSource interface {
	MasterPassword(ctx context.Context) (string, error)
	SecurityAnswer(ctx context.Context, index int, question string) (string, error)
	TOTPCode(ctx context.Context) (string, error)
}

// Factors is a FactorSource with fixed values.
type Factors struct {
	Password string
	Answer   string
	Code     string
}

// MasterPassword returns f.Password.
func (f Factors) MasterPassword(context.Context) (string, error) { return f.Password, nil }

// SecurityAnswer returns f.Answer.
func (f Factors) SecurityAnswer(context.Context, int, string) (string, error) { return f.Answer, nil }

// TOTPCode returns f.Code.
func (f Factors) TOTPCode(context.Context) (string, error) { return f.Code, nil }

// Unlocker drives one triple-factor unlock through its states.
//
// Decryption proves possession of the three static factors. The payload's
// TOTP secret then gates release of the key on a live code, so a correct
// decrypt with a stale code still ends in StateFailed.
type Unlocker struct {
	v   *Vault
	c   *keystore.Container
	src FactorSource

	state    State
	err      error
	session  *Session
	question int

	fingerprint string
	password    string
	answer      string
	code        string

	onTransition func(from, to State)
}

// NewUnlocker prepares an unlock of c with factors from src.
func (v *Vault) NewUnlocker(c *keystore.Container, src FactorSource) (*Unlocker, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	scheme, err := c.Scheme()
	if err != nil {
		return nil, err
	}
	if scheme != keystore.SchemeTripleFactor {
		return nil, fmt.Errorf("%w: container uses %s", ErrWrongScheme, scheme)
	}
	return &Unlocker{v: v, c: c, src: src, question: *c.QuestionIndex}, nil
}

// OnTransition registers a callback run on every state change.
func (u *Unlocker) OnTransition(fn func(from, to State)) {
	u.onTransition = fn
}

// State returns the current state.
func (u *Unlocker) State() State { return u.state }

// Err returns the failure cause once the state is StateFailed.
func (u *Unlocker) Err() error { return u.err }

// Run steps until a terminal state and returns the session or the error.
func (u *Unlocker) Run(ctx context.Context) (s *Session, err error) {
	defer func() {
		u.v.metrics.ObserveOperation(OpUnlock, string(keystore.SchemeTripleFactor), err)
	}()
	for !u.state.Terminal() {
		u.Step(ctx)
	}
	if u.state == StateFailed {
		return nil, u.err
	}
	return u.session, nil
}

// Step performs the work of the current state and advances.
func (u *Unlocker) Step(ctx context.Context) {
	if u.state.Terminal() {
		return
	}
	if err := ctx.Err(); err != nil {
		u.fail(ctx, err)
		return
	}

	var err error
	switch u.state {
	case StateCollectHardwareFingerprint:
		u.fingerprint, err = u.v.Fingerprint(ctx)
	case StatePromptMasterPassword:
		u.password, err = u.src.MasterPassword(ctx)
	case StatePromptSecurityAnswer:
		var q string
		if q, err = question.Get(u.question); err == nil {
			u.answer, err = u.src.SecurityAnswer(ctx, u.question, q)
		}
	case StatePromptTOTPCode:
		u.code, err = u.src.TOTPCode(ctx)
	case StateAttemptDecrypt:
		u.session, err = u.attempt(ctx)
	}
	if err != nil {
		u.fail(ctx, err)
		return
	}
	u.transition(ctx, u.state+1)
}

func (u *Unlocker) attempt(ctx context.Context) (*Session, error) {
	key := kdf.TripleFactorKey(u.fingerprint, u.password, u.answer)
	defer crypto.ZeroBytes(key)
	u.password, u.answer = "", ""

	plaintext, err := u.c.Decrypt(key)
	u.v.metrics.ObserveEncryption("decrypt")
	if err != nil {
		u.v.log(ctx).Debug("triple-factor decrypt failed", "error", err)
		return nil, &factorError{cause: err}
	}
	defer crypto.ZeroBytes(plaintext)

	payload, err := keystore.ParsePayload(plaintext)
	if err != nil {
		u.v.log(ctx).Debug("triple-factor payload rejected", "error", err)
		return nil, &factorError{cause: err}
	}
	if payload.QuestionIndex != u.question {
		return nil, fmt.Errorf("%w: question index %d does not match payload",
			keystore.ErrSchemeMismatch, u.question)
	}

	m, err := u.v.totpManager(payload.TwoFASecret)
	if err != nil {
		return nil, &factorError{cause: err}
	}
	if !m.Verify(u.code) {
		u.v.log(ctx).Debug("live code rejected", "remaining", m.RemainingTime())
		return nil, &factorError{cause: ErrInvalidCode}
	}

	return newSession(u.c, keystore.SchemeTripleFactor,
		[]byte(payload.PrivateKey), []byte(payload.TwoFASecret), u.v.now()), nil
}

func (u *Unlocker) fail(ctx context.Context, err error) {
	u.err = err
	u.password, u.answer, u.code = "", "", ""
	u.transition(ctx, StateFailed)
}

func (u *Unlocker) transition(ctx context.Context, to State) {
	from := u.state
	u.state = to
	u.v.log(ctx).Debug("unlock state", "from", from, "to", to)
	if u.onTransition != nil {
		u.onTransition(from, to)
	}
}

// UnlockTripleFactor opens c with fixed factors.
func (v *Vault) UnlockTripleFactor(ctx context.Context, c *keystore.Container, f Factors) (*Session, error) {
	u, err := v.NewUnlocker(c, f)
	if err != nil {
		return nil, err
	}
	return u.Run(ctx)
}
