package keystore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the plaintext of a triple-factor container.
type Payload struct {
	PrivateKey    string `json:"private_key"`
	TwoFASecret   string `json:"twofa_secret"`
	QuestionIndex int    `json:"question_index"`
	Version       string `json:"version"`
	CreatedAt     int64  `json:"created_at"`
}

// NewPayload builds a payload stamped with now.
func NewPayload(privateKey, twoFASecret string, questionIndex int, now time.Time) *Payload {
	return &Payload{
		PrivateKey:    privateKey,
		TwoFASecret:   twoFASecret,
		QuestionIndex: questionIndex,
		Version:       string(SchemeTripleFactor),
		CreatedAt:     now.Unix(),
	}
}

// Marshal encodes the payload as compact JSON.
func (p *Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// ParsePayload decodes a decrypted triple-factor payload.
func ParsePayload(data []byte) (*Payload, error) {
	var raw struct {
		PrivateKey    *string `json:"private_key"`
		TwoFASecret   *string `json:"twofa_secret"`
		QuestionIndex *int    `json:"question_index"`
		Version       string  `json:"version"`
		CreatedAt     int64   `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: payload is not JSON", ErrMalformed)
	}

	switch {
	case raw.PrivateKey == nil || *raw.PrivateKey == "":
		return nil, fmt.Errorf("%w: private_key", ErrMissingField)
	case raw.TwoFASecret == nil || *raw.TwoFASecret == "":
		return nil, fmt.Errorf("%w: twofa_secret", ErrMissingField)
	case raw.QuestionIndex == nil:
		return nil, fmt.Errorf("%w: question_index", ErrMissingField)
	}
	if raw.Version != "" && raw.Version != string(SchemeTripleFactor) {
		return nil, fmt.Errorf("%w: payload version %q", ErrUnknownScheme, raw.Version)
	}

	return &Payload{
		PrivateKey:    *raw.PrivateKey,
		TwoFASecret:   *raw.TwoFASecret,
		QuestionIndex: *raw.QuestionIndex,
		Version:       raw.Version,
		CreatedAt:     raw.CreatedAt,
	}, nil
}
