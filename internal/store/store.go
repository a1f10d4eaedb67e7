// Package store keeps a local index of created containers and an audit trail.
// It never holds key material: containers live in their own JSON files and the
// index only records where they are and how they are protected.
package store

import "time"

// Store defines the interface for index storage operations.
type Store interface {
	// Index metadata
	GetMeta() (*IndexMeta, error)
	SetMeta(meta *IndexMeta) error

	// Config
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error

	// Wallets
	PutWallet(w *WalletRecord) error
	GetWallet(publicKey string) (*WalletRecord, error)
	ListWallets() ([]*WalletRecord, error)
	TouchWallet(publicKey string, at time.Time) error
	DeleteWallet(publicKey string) error
	CountWallets() (int, error)

	// Audit
	AppendAudit(entry *AuditEntry) error
	ListAudit(limit int) ([]*AuditEntry, error)

	// Lifecycle
	Close() error
}
