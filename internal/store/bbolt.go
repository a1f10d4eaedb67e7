package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names used in the bbolt database.
var (
	bucketMeta    = []byte("_meta")
	bucketConfig  = []byte("_config")
	bucketWallets = []byte("wallets")
	bucketAudit   = []byte("audit")
)

// Sentinel errors returned by store operations.
var (
	ErrNotFound       = errors.New("not found")
	ErrWalletNotFound = fmt.Errorf("wallet %w", ErrNotFound)
)

// BoltStore implements Store using bbolt.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a bbolt database at the given path and
// ensures all required buckets exist. The file is created with 0600 permissions.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create all buckets if they do not exist.
	if err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{
			bucketMeta,
			bucketConfig,
			bucketWallets,
			bucketAudit,
		} {
			if _, bErr := tx.CreateBucketIfNotExists(b); bErr != nil {
				return fmt.Errorf("create bucket %s: %w", b, bErr)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	s := &BoltStore{db: db}
	if _, err := s.GetMeta(); errors.Is(err, ErrNotFound) {
		meta := &IndexMeta{Version: 1, CreatedAt: time.Now().UTC(), IndexID: uuid.New().String()}
		if err := s.SetMeta(meta); err != nil {
			db.Close()
			return nil, fmt.Errorf("init meta: %w", err)
		}
	}
	return s, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Index metadata
// ---------------------------------------------------------------------------

const metaKey = "index_meta"

// GetMeta returns the index metadata, or ErrNotFound if not set.
func (s *BoltStore) GetMeta() (*IndexMeta, error) {
	var meta IndexMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(metaKey))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &meta)
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// SetMeta stores the index metadata.
func (s *BoltStore) SetMeta(meta *IndexMeta) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		return tx.Bucket(bucketMeta).Put([]byte(metaKey), data)
	})
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// GetConfig returns the config value for the given key, or ErrNotFound.
func (s *BoltStore) GetConfig(key string) (string, error) {
	var val string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketConfig).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		val = string(v)
		return nil
	})
	return val, err
}

// SetConfig stores a config key-value pair.
func (s *BoltStore) SetConfig(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConfig).Put([]byte(key), []byte(value))
	})
}

// ---------------------------------------------------------------------------
// Wallets
// ---------------------------------------------------------------------------

// PutWallet inserts or replaces the record for w.PublicKey. An existing
// record keeps its ID and CreatedAt.
func (s *BoltStore) PutWallet(w *WalletRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketWallets)
		key := []byte(w.PublicKey)

		now := time.Now().UTC()
		if existing := bucket.Get(key); existing != nil {
			var old WalletRecord
			if err := json.Unmarshal(existing, &old); err != nil {
				return fmt.Errorf("unmarshal existing wallet: %w", err)
			}
			w.ID = old.ID
			w.CreatedAt = old.CreatedAt
			if w.LastUnlockedAt == nil {
				w.LastUnlockedAt = old.LastUnlockedAt
			}
		}
		if w.ID == uuid.Nil {
			w.ID = uuid.New()
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		w.UpdatedAt = now

		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("marshal wallet: %w", err)
		}
		return bucket.Put(key, data)
	})
}

// GetWallet retrieves a wallet record by public key.
func (s *BoltStore) GetWallet(publicKey string) (*WalletRecord, error) {
	var w WalletRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketWallets).Get([]byte(publicKey))
		if v == nil {
			return ErrWalletNotFound
		}
		return json.Unmarshal(v, &w)
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWallets returns all wallet records, oldest first.
func (s *BoltStore) ListWallets() ([]*WalletRecord, error) {
	var wallets []*WalletRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWallets).ForEach(func(_, v []byte) error {
			var w WalletRecord
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			wallets = append(wallets, &w)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(wallets, func(i, j int) bool {
		return wallets[i].CreatedAt.Before(wallets[j].CreatedAt)
	})
	return wallets, nil
}

// TouchWallet records a successful unlock.
func (s *BoltStore) TouchWallet(publicKey string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketWallets)
		v := bucket.Get([]byte(publicKey))
		if v == nil {
			return ErrWalletNotFound
		}
		var w WalletRecord
		if err := json.Unmarshal(v, &w); err != nil {
			return fmt.Errorf("unmarshal wallet: %w", err)
		}
		at = at.UTC()
		w.LastUnlockedAt = &at

		data, err := json.Marshal(&w)
		if err != nil {
			return fmt.Errorf("marshal wallet: %w", err)
		}
		return bucket.Put([]byte(publicKey), data)
	})
}

// DeleteWallet removes a wallet record. The container file is untouched.
func (s *BoltStore) DeleteWallet(publicKey string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketWallets)
		if bucket.Get([]byte(publicKey)) == nil {
			return ErrWalletNotFound
		}
		return bucket.Delete([]byte(publicKey))
	})
}

// CountWallets returns the number of indexed wallets.
func (s *BoltStore) CountWallets() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketWallets).Stats().KeyN
		return nil
	})
	return n, err
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

// AppendAudit appends an audit entry. Entries are keyed by timestamp + UUID
// for ordering and uniqueness.
func (s *BoltStore) AppendAudit(entry *AuditEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := fmt.Sprintf("%s_%s", entry.Timestamp.UTC().Format(time.RFC3339Nano), uuid.New().String())
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal audit entry: %w", err)
		}
		return tx.Bucket(bucketAudit).Put([]byte(key), data)
	})
}

// ListAudit returns the most recent audit entries, up to the given limit.
// Entries are returned in reverse chronological order (newest first).
func (s *BoltStore) ListAudit(limit int) ([]*AuditEntry, error) {
	var entries []*AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}
