package keystore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/safekey/internal/crypto"
	"github.com/abdul-hamid-achik/safekey/internal/kdf"
)

const testPublicKey = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func newTestContainer(t *testing.T, scheme Scheme, c crypto.Cipher, key []byte, plaintext string) *Container {
	t.Helper()

	blob, err := Encrypt(scheme, c, key, []byte(plaintext))
	if err != nil {
		t.Fatalf("Encrypt(%s) error = %v", scheme, err)
	}
	cont := &Container{
		EncryptedPrivateKey: blob,
		PublicKey:           testPublicKey,
		EncryptionType:      scheme,
		CreatedAt:           time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if scheme == SchemeTripleFactor {
		idx := 2
		cont.QuestionIndex = &idx
	}
	return cont
}

func TestEncryptDecrypt_AllSchemes(t *testing.T) {
	key := kdf.PasswordKey("Str0ng!Passw0rd")
	plaintext := "4wBqpZM9xaSheZzJSMawUHDgZ7miWfSsxmfVF5jJpYP2"

	tests := []struct {
		name   string
		scheme Scheme
		cipher crypto.Cipher
	}{
		{"password_only", SchemePasswordOnly, crypto.Keystream{}},
		{"password_aead_gcm", SchemePasswordAEAD, crypto.AESGCM{}},
		{"password_aead_chacha", SchemePasswordAEAD, crypto.ChaCha20Poly1305{}},
		{"password_aead_default", SchemePasswordAEAD, nil},
		{"triple_factor", SchemeTripleFactor, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContainer(t, tt.scheme, tt.cipher, key, plaintext)
			got, err := c.Decrypt(key)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if string(got) != plaintext {
				t.Errorf("Decrypt() = %q, want %q", got, plaintext)
			}
		})
	}
}

func TestBlobShapes(t *testing.T) {
	key := kdf.PasswordKey("pw")

	only := newTestContainer(t, SchemePasswordOnly, nil, key, "secret")
	var s string
	if err := json.Unmarshal(only.EncryptedPrivateKey, &s); err != nil {
		t.Errorf("password_only blob is not a string: %s", only.EncryptedPrivateKey)
	}

	aead := newTestContainer(t, SchemePasswordAEAD, crypto.ChaCha20Poly1305{}, key, "secret")
	var blob AEADBlob
	if err := json.Unmarshal(aead.EncryptedPrivateKey, &blob); err != nil {
		t.Fatalf("password_aead blob is not an object: %v", err)
	}
	if blob.IV == "" || blob.Ciphertext == "" {
		t.Errorf("blob = %+v, want iv and ciphertext", blob)
	}
	if alg, _ := aead.Cipher(); alg != crypto.AlgChaCha20Poly1305 {
		t.Errorf("Cipher() = %s, want %s", alg, crypto.AlgChaCha20Poly1305)
	}
}

func TestEncrypt_Errors(t *testing.T) {
	key := kdf.PasswordKey("pw")

	if _, err := Encrypt(SchemePasswordAEAD, crypto.Keystream{}, key, []byte("x")); !errors.Is(err, ErrSchemeMismatch) {
		t.Errorf("Encrypt(aead, keystream) error = %v, want %v", err, ErrSchemeMismatch)
	}
	if _, err := Encrypt("rot13", nil, key, []byte("x")); !errors.Is(err, ErrUnknownScheme) {
		t.Errorf("Encrypt(rot13) error = %v, want %v", err, ErrUnknownScheme)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := kdf.PasswordKey("right password")
	wrong := kdf.PasswordKey("wrong password")

	aead := newTestContainer(t, SchemePasswordAEAD, nil, key, "secret")
	if _, err := aead.Decrypt(wrong); !errors.Is(err, crypto.ErrDecryptionFailed) {
		t.Errorf("AEAD Decrypt(wrong) error = %v, want %v", err, crypto.ErrDecryptionFailed)
	}

	triple := newTestContainer(t, SchemeTripleFactor, nil, key, `{"private_key":"x"}`)
	if _, err := triple.Decrypt(wrong); !errors.Is(err, crypto.ErrDecryptionFailed) {
		t.Errorf("triple Decrypt(wrong) error = %v, want %v", err, crypto.ErrDecryptionFailed)
	}

	// A keystream wrong key is only caught when the output is not UTF-8.
	// With a 64-byte plaintext the chance of random bytes being valid UTF-8
	// is negligible.
	only := newTestContainer(t, SchemePasswordOnly, nil, key,
		"4wBqpZM9xaSheZzJSMawUHDgZ7miWfSsxmfVF5jJpYP24wBqpZM9xaSheZzJSMaw")
	if _, err := only.Decrypt(wrong); !errors.Is(err, crypto.ErrInvalidPlaintext) {
		t.Errorf("keystream Decrypt(wrong) error = %v, want %v", err, crypto.ErrInvalidPlaintext)
	}
}

func TestDecrypt_SchemeMismatch(t *testing.T) {
	key := kdf.PasswordKey("pw")

	aead := newTestContainer(t, SchemePasswordAEAD, nil, key, "secret")
	aead.EncryptionType = SchemePasswordOnly
	if _, err := aead.Decrypt(key); !errors.Is(err, ErrSchemeMismatch) {
		t.Errorf("object blob as password_only error = %v, want %v", err, ErrSchemeMismatch)
	}

	only := newTestContainer(t, SchemePasswordOnly, nil, key, "secret")
	only.EncryptionType = SchemePasswordAEAD
	if _, err := only.Decrypt(key); !errors.Is(err, ErrSchemeMismatch) {
		t.Errorf("string blob as password_aead error = %v, want %v", err, ErrSchemeMismatch)
	}
}

func TestDecrypt_MalformedBlob(t *testing.T) {
	key := kdf.PasswordKey("pw")

	c := &Container{
		EncryptedPrivateKey: json.RawMessage(`"!!!not base64!!!"`),
		PublicKey:           testPublicKey,
		EncryptionType:      SchemePasswordOnly,
	}
	if _, err := c.Decrypt(key); !errors.Is(err, ErrMalformed) {
		t.Errorf("Decrypt(bad base64) error = %v, want %v", err, ErrMalformed)
	}

	c = &Container{
		EncryptedPrivateKey: json.RawMessage(`{"iv":"AAAA"}`),
		PublicKey:           testPublicKey,
		EncryptionType:      SchemePasswordAEAD,
	}
	if _, err := c.Decrypt(key); !errors.Is(err, ErrMissingField) {
		t.Errorf("Decrypt(no ciphertext) error = %v, want %v", err, ErrMissingField)
	}

	c = &Container{
		EncryptedPrivateKey: json.RawMessage(`{"iv":"AAAA","ciphertext":"AAAA","cipher":"des"}`),
		PublicKey:           testPublicKey,
		EncryptionType:      SchemePasswordAEAD,
	}
	if _, err := c.Decrypt(key); !errors.Is(err, ErrMalformed) {
		t.Errorf("Decrypt(unknown cipher) error = %v, want %v", err, ErrMalformed)
	}
}

func TestScheme_Resolution(t *testing.T) {
	tests := []struct {
		name    string
		c       Container
		want    Scheme
		wantErr error
	}{
		{
			name: "encryption_type",
			c:    Container{EncryptionType: SchemePasswordAEAD},
			want: SchemePasswordAEAD,
		},
		{
			name: "legacy version",
			c:    Container{Version: "triple_factor_v1"},
			want: SchemeTripleFactor,
		},
		{
			name:    "unknown type",
			c:       Container{EncryptionType: "quantum"},
			wantErr: ErrUnknownScheme,
		},
		{
			name:    "unknown version",
			c:       Container{Version: "triple_factor_v9"},
			wantErr: ErrUnknownScheme,
		},
		{
			name:    "missing",
			c:       Container{},
			wantErr: ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.c.Scheme()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Scheme() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Scheme() = %q, %v, want %q", got, err, tt.want)
			}
		})
	}
}

func TestLegacyTripleFactorUsesKeystream(t *testing.T) {
	key := kdf.TripleFactorKey("F", "Str0ng!Passw0rd", "blue")
	payload := `{"private_key":"abc","twofa_secret":"GEZDGNBV","question_index":1,"version":"triple_factor_v1","created_at":1700000000}`

	blob, err := Encrypt(SchemePasswordOnly, nil, key, []byte(payload))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	idx := 1
	c := &Container{
		EncryptedPrivateKey: blob,
		PublicKey:           testPublicKey,
		Version:             "triple_factor_v1",
		QuestionIndex:       &idx,
	}

	if !c.Legacy() {
		t.Fatal("Legacy() = false")
	}
	got, err := c.Decrypt(key)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if string(got) != payload {
		t.Errorf("Decrypt() = %s", got)
	}
	if alg, _ := c.Cipher(); alg != crypto.AlgKeystream {
		t.Errorf("Cipher() = %s, want keystream", alg)
	}
}

func TestValidate(t *testing.T) {
	key := kdf.PasswordKey("pw")
	base := func() *Container { return newTestContainer(t, SchemeTripleFactor, nil, key, "x") }

	if err := base().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	c := base()
	c.QuestionIndex = nil
	if err := c.Validate(); !errors.Is(err, ErrMissingField) {
		t.Errorf("Validate(no question_index) error = %v, want %v", err, ErrMissingField)
	}

	c = base()
	c.PublicKey = ""
	if err := c.Validate(); !errors.Is(err, ErrMissingField) {
		t.Errorf("Validate(no public_key) error = %v, want %v", err, ErrMissingField)
	}

	c = base()
	c.PublicKey = "../../etc/passwd"
	if err := c.Validate(); !errors.Is(err, ErrMalformed) {
		t.Errorf("Validate(bad public_key) error = %v, want %v", err, ErrMalformed)
	}

	c = base()
	c.EncryptedPrivateKey = nil
	if err := c.Validate(); !errors.Is(err, ErrMissingField) {
		t.Errorf("Validate(no blob) error = %v, want %v", err, ErrMissingField)
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.json")
	key := kdf.PasswordKey("pw")

	orig := newTestContainer(t, SchemePasswordAEAD, nil, key, "secret")
	if err := Save(path, orig); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != FileMode {
			t.Errorf("permissions = %o, want %o", perm, FileMode)
		}
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.PublicKey != orig.PublicKey || loaded.EncryptionType != orig.EncryptionType {
		t.Errorf("Load() = %+v", loaded)
	}
	if !loaded.CreatedAt.Equal(orig.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", loaded.CreatedAt, orig.CreatedAt)
	}
	got, err := loaded.Decrypt(key)
	if err != nil || string(got) != "secret" {
		t.Errorf("Decrypt() = %q, %v", got, err)
	}

	pk, err := PublicKeyOf(path)
	if err != nil || pk != testPublicKey {
		t.Errorf("PublicKeyOf() = %q, %v", pk, err)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want %v", err, ErrNotFound)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0o600)
	if _, err := Load(bad); !errors.Is(err, ErrMalformed) {
		t.Errorf("Load(bad json) error = %v, want %v", err, ErrMalformed)
	}

	unknown := filepath.Join(dir, "unknown.json")
	os.WriteFile(unknown, []byte(`{"encrypted_private_key":"AAAA","public_key":"abc","encryption_type":"rsa"}`), 0o600)
	if _, err := Load(unknown); !errors.Is(err, ErrUnknownScheme) {
		t.Errorf("Load(unknown type) error = %v, want %v", err, ErrUnknownScheme)
	}
}

func TestParseRFC3339CreatedAt(t *testing.T) {
	doc := `{
		"encrypted_private_key": "AAAA",
		"public_key": "abc123",
		"encryption_type": "password_only",
		"created_at": "2025-03-01T10:20:30.123456+00:00"
	}`
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.CreatedAt.Year() != 2025 || c.CreatedAt.Month() != time.March {
		t.Errorf("CreatedAt = %v", c.CreatedAt)
	}
}

func TestRecoveryPath(t *testing.T) {
	got := RecoveryPath("/tmp/w", testPublicKey)
	if want := filepath.Join("/tmp/w", "7xKXtg2C_keystore.json"); got != want {
		t.Errorf("RecoveryPath() = %s, want %s", got, want)
	}
	if got := RecoveryPath("d", "abc"); got != filepath.Join("d", "abc_keystore.json") {
		t.Errorf("RecoveryPath(short) = %s", got)
	}
}

func TestPayload(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := NewPayload("priv", "SECRET", 4, now)

	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := ParsePayload(data)
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if *got != *p {
		t.Errorf("ParsePayload() = %+v, want %+v", got, p)
	}
	if got.Version != "triple_factor_v1" || got.CreatedAt != 1_700_000_000 {
		t.Errorf("payload = %+v", got)
	}

	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"not json", `garbage`, ErrMalformed},
		{"no private key", `{"twofa_secret":"S","question_index":0}`, ErrMissingField},
		{"no secret", `{"private_key":"k","question_index":0}`, ErrMissingField},
		{"no index", `{"private_key":"k","twofa_secret":"S"}`, ErrMissingField},
		{"bad version", `{"private_key":"k","twofa_secret":"S","question_index":0,"version":"v2"}`, ErrUnknownScheme},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePayload([]byte(tt.doc)); !errors.Is(err, tt.wantErr) {
				t.Errorf("ParsePayload() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
