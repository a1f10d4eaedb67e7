// Package question holds the fixed security question bank.
//
// Triple-factor containers fold the raw normalized answer into the key
// derivation. HashAnswer and VerifyAnswer are only for equality checks, such
// as confirming an answer typed twice during setup, and are never used to
// unlock a container.
package question

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/abdul-hamid-achik/safekey/internal/kdf"
	"github.com/abdul-hamid-achik/safekey/internal/validation"
)

// Bank is the enumerated list of questions. Indexes are persisted in
// containers, so entries may be appended but never reordered or removed.
var Bank = []string{
	"What is your mother's name?",
	"In which city were you born?",
	"What was the name of your primary school?",
	"What is your favorite movie?",
	"What was the name of your first pet?",
	"What is your father's birthday? (YYYYMMDD)",
	"What is your spouse's name?",
	"What is your best friend's name?",
}

// Selection is a chosen question and its normalized answer.
type Selection struct {
	Index    int
	Question string
	Answer   string
}

// Get returns the question at index.
func Get(index int) (string, error) {
	if err := validation.QuestionIndex(index, len(Bank)); err != nil {
		return "", err
	}
	return Bank[index], nil
}

// Select validates index and answer and returns the normalized selection.
func Select(index int, answer string) (*Selection, error) {
	q, err := Get(index)
	if err != nil {
		return nil, err
	}
	if err := validation.Answer(answer); err != nil {
		return nil, err
	}
	return &Selection{
		Index:    index,
		Question: q,
		Answer:   Normalize(answer),
	}, nil
}

// Normalize trims and lower-cases an answer.
func Normalize(answer string) string {
	return kdf.NormalizeAnswer(answer)
}

// HashAnswer returns the hex SHA-256 of the normalized answer.
func HashAnswer(answer string) string {
	sum := sha256.Sum256([]byte(Normalize(answer)))
	return hex.EncodeToString(sum[:])
}

// VerifyAnswer reports whether answer matches a hash from HashAnswer.
func VerifyAnswer(answer, expectedHash string) bool {
	got := HashAnswer(answer)
	return subtle.ConstantTimeCompare([]byte(got), []byte(expectedHash)) == 1
}
