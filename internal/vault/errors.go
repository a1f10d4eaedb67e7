package vault

import "errors"

var (
	// ErrAuthenticationFailed is returned when a container cannot be opened
	// with the presented factors. The triple-factor path never says which
	// factor was wrong.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidCode is returned when a one-time code does not verify.
	ErrInvalidCode = errors.New("invalid 2FA code")

	// ErrConfirmationMismatch is returned when a confirmation entry differs.
	ErrConfirmationMismatch = errors.New("confirmation does not match")

	// ErrDestroyed is returned when using a wiped session or enrollment.
	ErrDestroyed = errors.New("credentials already destroyed")

	// ErrWrongScheme is returned when an operation is used on a container of
	// another scheme, e.g. a password unlock on a triple-factor container.
	ErrWrongScheme = errors.New("operation not supported for this encryption type")

	// ErrExists is returned when a write would replace an existing container.
	ErrExists = errors.New("keystore already exists")
)

// factorError is a triple-factor unlock failure. The message is the same
// whichever factor was wrong; errors.Is still reaches the cause.
type factorError struct {
	cause error
}

func (e *factorError) Error() string {
	return "authentication failed: check master password, security answer and 2FA code"
}

func (e *factorError) Unwrap() []error {
	return []error{ErrAuthenticationFailed, e.cause}
}
