package store

import (
	"time"

	"github.com/google/uuid"
)

// Config keys.
const (
	// ConfigDefaultWallet holds the public key used when no file is given.
	ConfigDefaultWallet = "default_wallet"
)

// Audit actions.
const (
	ActionCreate       = "create"
	ActionUnlock       = "unlock"
	ActionUnlockFailed = "unlock_failed"
	ActionBackup       = "backup"
	ActionRestore      = "restore"
	ActionForget       = "forget"
)

// IndexMeta holds index-level metadata.
type IndexMeta struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	IndexID   string    `json:"index_id"`
}

// WalletRecord describes one container file known to this machine.
type WalletRecord struct {
	ID             uuid.UUID  `json:"id"`
	PublicKey      string     `json:"public_key"`
	Path           string     `json:"path"`
	Scheme         string     `json:"scheme"`
	Cipher         string     `json:"cipher,omitempty"`
	QuestionIndex  *int       `json:"question_index,omitempty"`
	RecoveryPath   string     `json:"recovery_path,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastUnlockedAt *time.Time `json:"last_unlocked_at,omitempty"`
}

// AuditEntry represents a local audit log entry. It never carries secrets.
type AuditEntry struct {
	Action    string         `json:"action"`
	Scheme    string         `json:"scheme,omitempty"`
	PublicKey string         `json:"public_key,omitempty"`
	Path      string         `json:"path,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
