// Package validation provides input validation functions.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinPasswordLength is the minimum master password length in characters.
	MinPasswordLength = 10
	// MaxPasswordLength is the maximum master password length in characters.
	MaxPasswordLength = 64
	// MinPasswordClasses is how many of upper, lower, digit and symbol a password needs.
	MinPasswordClasses = 3
)

var (
	// ErrPasswordTooShort is returned when a password is shorter than MinPasswordLength.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	// ErrPasswordTooLong is returned when a password exceeds MaxPasswordLength.
	ErrPasswordTooLong = fmt.Errorf("password must be at most %d characters", MaxPasswordLength)
	// ErrPasswordTooWeak is returned when too few character classes are present.
	ErrPasswordTooWeak = fmt.Errorf("password must contain at least %d of: uppercase, lowercase, digit, symbol", MinPasswordClasses)

	// ErrQuestionIndexRange is returned when a question index is outside the bank.
	ErrQuestionIndexRange = errors.New("security question index out of range")

	// ErrAnswerEmpty is returned when a security answer is blank after trimming.
	ErrAnswerEmpty = errors.New("security answer is required")

	// ErrPublicKeyEmpty is returned when a public identifier is empty.
	ErrPublicKeyEmpty = errors.New("public key is required")
	// ErrPublicKeyInvalidFormat is returned when a public identifier has unexpected characters.
	ErrPublicKeyInvalidFormat = errors.New("public key may only contain letters and digits")

	// ErrPrivateKeyEmpty is returned when there is nothing to encrypt.
	ErrPrivateKeyEmpty = errors.New("private key is required")

	// ErrCodeFormat is returned when a one-time code is not all digits of the right length.
	ErrCodeFormat = errors.New("code must be numeric")
)

var publicKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Password validates a master password.
// Rules: 10-64 characters, at least 3 of 4 character classes.
// Applied only when a container is created, never to existing ones.
func Password(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if n > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if PasswordClasses(password) < MinPasswordClasses {
		return ErrPasswordTooWeak
	}
	return nil
}

// PasswordClasses counts how many of uppercase, lowercase, digit and
// non-alphanumeric characters appear in password.
func PasswordClasses(password string) int {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			symbol = true
		}
	}

	count := 0
	for _, ok := range []bool{upper, lower, digit, symbol} {
		if ok {
			count++
		}
	}
	return count
}

// QuestionIndex validates an index into a bank of size questions.
func QuestionIndex(index, size int) error {
	if index < 0 || index >= size {
		return fmt.Errorf("%w: %d (have %d questions)", ErrQuestionIndexRange, index, size)
	}
	return nil
}

// Answer validates a security answer.
func Answer(answer string) error {
	if strings.TrimSpace(answer) == "" {
		return ErrAnswerEmpty
	}
	return nil
}

// PublicKey validates a public identifier.
// Rules: non-empty, ASCII letters and digits only (base58 is a subset).
func PublicKey(key string) error {
	if key == "" {
		return ErrPublicKeyEmpty
	}
	if !publicKeyRegex.MatchString(key) {
		return ErrPublicKeyInvalidFormat
	}
	return nil
}

// PrivateKey validates the raw key string handed in for encryption.
func PrivateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrPrivateKeyEmpty
	}
	return nil
}

// Code validates a one-time code of the given digit count.
func Code(code string, digits int) error {
	if len(code) != digits {
		return fmt.Errorf("%w: expected %d digits", ErrCodeFormat, digits)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ErrCodeFormat
		}
	}
	return nil
}
