package store

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func intPtr(i int) *int { return &i }

// ---------------------------------------------------------------------------
// Store creation
// ---------------------------------------------------------------------------

func TestNewBoltStore_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	defer s.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("database file is empty")
	}
}

func TestBoltStore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	defer s.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("expected file permissions 0600, got %04o", perm)
	}
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

func TestBoltStore_MetaInitialized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	meta, err := s.GetMeta()
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if meta.Version != 1 || meta.IndexID == "" {
		t.Errorf("meta = %+v", meta)
	}
	s.Close()

	// Reopening keeps the same id.
	s2, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore (reopen): %v", err)
	}
	defer s2.Close()
	meta2, err := s2.GetMeta()
	if err != nil {
		t.Fatalf("GetMeta after reopen: %v", err)
	}
	if meta2.IndexID != meta.IndexID {
		t.Errorf("IndexID changed on reopen: %q -> %q", meta.IndexID, meta2.IndexID)
	}
}

func TestBoltStore_MetaUpdate(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	meta := &IndexMeta{Version: 2, CreatedAt: now, IndexID: uuid.New().String()}
	if err := s.SetMeta(meta); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}

	got, err := s.GetMeta()
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
	if got.IndexID != meta.IndexID {
		t.Errorf("IndexID = %q, want %q", got.IndexID, meta.IndexID)
	}
	if !got.CreatedAt.Equal(meta.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, meta.CreatedAt)
	}
}

// ---------------------------------------------------------------------------
// Config CRUD
// ---------------------------------------------------------------------------

func TestBoltStore_ConfigCRUD(t *testing.T) {
	s := newTestStore(t)

	// Key not set yet.
	_, err := s.GetConfig(ConfigDefaultWallet)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SetConfig(ConfigDefaultWallet, "abc123"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	val, err := s.GetConfig(ConfigDefaultWallet)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if val != "abc123" {
		t.Errorf("GetConfig = %q, want %q", val, "abc123")
	}

	// Overwrite.
	if err := s.SetConfig(ConfigDefaultWallet, "xyz456"); err != nil {
		t.Fatalf("SetConfig (overwrite): %v", err)
	}
	val, err = s.GetConfig(ConfigDefaultWallet)
	if err != nil {
		t.Fatalf("GetConfig after overwrite: %v", err)
	}
	if val != "xyz456" {
		t.Errorf("GetConfig after overwrite = %q, want %q", val, "xyz456")
	}
}

// ---------------------------------------------------------------------------
// Wallets
// ---------------------------------------------------------------------------

func TestBoltStore_WalletCRUD(t *testing.T) {
	s := newTestStore(t)

	w := &WalletRecord{
		PublicKey:     "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		Path:          "/home/user/.safekey/wallet.json",
		Scheme:        "triple_factor_v1",
		Cipher:        "aes-256-gcm",
		QuestionIndex: intPtr(3),
		RecoveryPath:  "/home/user/.safekey/7xKXtg2C_keystore.json",
	}
	if err := s.PutWallet(w); err != nil {
		t.Fatalf("PutWallet: %v", err)
	}
	if w.ID == uuid.Nil {
		t.Fatal("PutWallet did not assign an ID")
	}
	if w.CreatedAt.IsZero() || w.UpdatedAt.IsZero() {
		t.Fatal("PutWallet did not set timestamps")
	}

	got, err := s.GetWallet(w.PublicKey)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if got.ID != w.ID || got.Path != w.Path || got.Scheme != w.Scheme {
		t.Errorf("GetWallet = %+v, want %+v", got, w)
	}
	if got.QuestionIndex == nil || *got.QuestionIndex != 3 {
		t.Errorf("QuestionIndex = %v, want 3", got.QuestionIndex)
	}

	// Re-put keeps ID and CreatedAt.
	firstID, firstCreated := w.ID, w.CreatedAt
	replacement := &WalletRecord{
		PublicKey: w.PublicKey,
		Path:      "/mnt/usb/wallet.json",
		Scheme:    "triple_factor_v1",
	}
	if err := s.PutWallet(replacement); err != nil {
		t.Fatalf("PutWallet (replace): %v", err)
	}
	got, _ = s.GetWallet(w.PublicKey)
	if got.ID != firstID {
		t.Errorf("ID changed on replace: %v -> %v", firstID, got.ID)
	}
	if !got.CreatedAt.Equal(firstCreated) {
		t.Errorf("CreatedAt changed on replace")
	}
	if got.Path != "/mnt/usb/wallet.json" {
		t.Errorf("Path = %q", got.Path)
	}

	// Delete.
	if err := s.DeleteWallet(w.PublicKey); err != nil {
		t.Fatalf("DeleteWallet: %v", err)
	}
	if _, err := s.GetWallet(w.PublicKey); !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("GetWallet after delete: expected ErrWalletNotFound, got %v", err)
	}
	if err := s.DeleteWallet(w.PublicKey); !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("DeleteWallet twice: expected ErrWalletNotFound, got %v", err)
	}
}

func TestBoltStore_ListAndCountWallets(t *testing.T) {
	s := newTestStore(t)

	if n, err := s.CountWallets(); err != nil || n != 0 {
		t.Fatalf("CountWallets = %d, %v, want 0", n, err)
	}

	for _, pk := range []string{"aaa111", "bbb222", "ccc333"} {
		if err := s.PutWallet(&WalletRecord{PublicKey: pk, Scheme: "password_aead"}); err != nil {
			t.Fatalf("PutWallet(%s): %v", pk, err)
		}
	}

	wallets, err := s.ListWallets()
	if err != nil {
		t.Fatalf("ListWallets: %v", err)
	}
	if len(wallets) != 3 {
		t.Fatalf("ListWallets returned %d, want 3", len(wallets))
	}
	for i := 1; i < len(wallets); i++ {
		if wallets[i].CreatedAt.Before(wallets[i-1].CreatedAt) {
			t.Error("ListWallets should return oldest first")
		}
	}

	if n, err := s.CountWallets(); err != nil || n != 3 {
		t.Errorf("CountWallets = %d, %v, want 3", n, err)
	}
}

func TestBoltStore_TouchWallet(t *testing.T) {
	s := newTestStore(t)

	if err := s.TouchWallet("missing", time.Now()); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("TouchWallet(missing): expected ErrWalletNotFound, got %v", err)
	}

	if err := s.PutWallet(&WalletRecord{PublicKey: "abc"}); err != nil {
		t.Fatalf("PutWallet: %v", err)
	}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.TouchWallet("abc", at); err != nil {
		t.Fatalf("TouchWallet: %v", err)
	}

	got, _ := s.GetWallet("abc")
	if got.LastUnlockedAt == nil || !got.LastUnlockedAt.Equal(at) {
		t.Errorf("LastUnlockedAt = %v, want %v", got.LastUnlockedAt, at)
	}

	// A later PutWallet without LastUnlockedAt keeps the old value.
	if err := s.PutWallet(&WalletRecord{PublicKey: "abc", Path: "p"}); err != nil {
		t.Fatalf("PutWallet: %v", err)
	}
	got, _ = s.GetWallet("abc")
	if got.LastUnlockedAt == nil {
		t.Error("PutWallet dropped LastUnlockedAt")
	}
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

func TestBoltStore_AuditLog(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC()

	actions := []string{ActionCreate, ActionUnlockFailed, ActionUnlock, ActionBackup, ActionRestore}
	for i, action := range actions {
		entry := &AuditEntry{
			Action:    action,
			Scheme:    "triple_factor_v1",
			PublicKey: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Metadata:  map[string]any{"attempt": float64(i + 1)},
		}
		if err := s.AppendAudit(entry); err != nil {
			t.Fatalf("AppendAudit %d: %v", i, err)
		}
	}

	// List all.
	entries, err := s.ListAudit(0)
	if err != nil {
		t.Fatalf("ListAudit(0): %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("ListAudit(0) returned %d entries, want 5", len(entries))
	}

	// Newest first.
	if entries[0].Action != ActionRestore {
		t.Errorf("first entry = %q, want %q", entries[0].Action, ActionRestore)
	}
	if entries[0].Timestamp.Before(entries[len(entries)-1].Timestamp) {
		t.Error("ListAudit should return newest first")
	}

	// List with limit.
	entries, err = s.ListAudit(3)
	if err != nil {
		t.Fatalf("ListAudit(3): %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("ListAudit(3) returned %d entries, want 3", len(entries))
	}
}

func TestBoltStore_WalletNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetWallet("nope")
	if !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ErrWalletNotFound should wrap ErrNotFound")
	}
}
