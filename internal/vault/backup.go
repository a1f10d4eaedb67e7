package vault

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/safekey/internal/fsutil"
	"github.com/abdul-hamid-achik/safekey/internal/keystore"
)

// Backup copies the container at src to dst after checking that it parses.
// The copy is byte-identical, so it stays bound to the same factors.
func (v *Vault) Backup(ctx context.Context, src, dst string) (c *keystore.Container, err error) {
	var scheme keystore.Scheme
	defer func() { v.observe(ctx, OpBackup, scheme, c, dst, err) }()

	if c, err = keystore.Load(src); err != nil {
		return nil, err
	}
	if scheme, err = c.Scheme(); err != nil {
		return nil, err
	}
	if fsutil.Exists(dst) {
		return nil, fmt.Errorf("%w: %s", ErrExists, dst)
	}
	if err := fsutil.CopyFile(src, dst, keystore.FileMode); err != nil {
		return nil, fmt.Errorf("copy keystore: %w", err)
	}
	return c, nil
}

// Restore copies a backup at src into place at dst and indexes it. An
// existing dst is only replaced when overwrite is set.
func (v *Vault) Restore(ctx context.Context, src, dst string, overwrite bool) (c *keystore.Container, err error) {
	var scheme keystore.Scheme
	defer func() { v.observe(ctx, OpRestore, scheme, c, dst, err) }()

	if c, err = keystore.Load(src); err != nil {
		return nil, err
	}
	if scheme, err = c.Scheme(); err != nil {
		return nil, err
	}
	if !overwrite && fsutil.Exists(dst) {
		return nil, fmt.Errorf("%w: %s", ErrExists, dst)
	}
	if err := fsutil.CopyFile(src, dst, keystore.FileMode); err != nil {
		return nil, fmt.Errorf("copy keystore: %w", err)
	}
	v.register(ctx, c, dst, "")
	return c, nil
}
