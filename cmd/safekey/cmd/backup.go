package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/safekey/internal/fsutil"
	"github.com/abdul-hamid-achik/safekey/internal/store"
)

var (
	backupWallet   string
	restoreOutput  string
	restoreYes     bool
	restoreDefault bool
)

var backupCmd = &cobra.Command{
	Use:   "backup <path>",
	Short: "Copy a keystore to a backup location",
	Long: `Create a backup of a keystore file.

The backup is a byte-for-byte copy. It is protected by the same factors as
the original, so a triple-factor backup still only opens on this machine.

Examples:
  safekey backup ~/backups/wallet.json
  safekey backup /mnt/usb/wallet.json --wallet ./other.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Restore a keystore from a backup",
	Long: `Copy a backup keystore into the data directory and add it to the index.

The backup is parsed first; a damaged file is rejected before anything is
overwritten.

Examples:
  safekey restore ~/backups/wallet.json
  safekey restore ~/backups/wallet.json --output ./wallet.json --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	backupCmd.Flags().StringVarP(&backupWallet, "wallet", "w", "", "keystore path or public key (default wallet if empty)")
	restoreCmd.Flags().StringVarP(&restoreOutput, "output", "o", "", "destination (default <dir>/<backup file name>)")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "skip confirmation prompt")
	restoreCmd.Flags().BoolVar(&restoreDefault, "set-default", false, "make the restored keystore the default wallet")
}

func runBackup(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := a.resolveWallet(backupWallet)
	if err != nil {
		return err
	}
	dst := args[0]

	c, err := a.vault.Backup(a.ctx, src, dst)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]string{"source": src, "backup": dst, "public_key": c.PublicKey})
	}
	Success("Keystore backed up to %s", dst)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	src := args[0]
	dst := restoreOutput
	if dst == "" {
		dst = filepath.Join(a.cfg.Dir, filepath.Base(src))
	}

	overwrite := false
	if fsutil.Exists(dst) {
		if !restoreYes {
			Warning("This will overwrite %s.", dst)
			if !PromptConfirm("Restore from backup?") {
				Info("Canceled")
				return nil
			}
		}
		overwrite = true
	}

	c, err := a.vault.Restore(a.ctx, src, dst, overwrite)
	if err != nil {
		return err
	}
	if restoreDefault {
		if err := a.store.SetConfig(store.ConfigDefaultWallet, c.PublicKey); err != nil {
			return err
		}
	}

	if jsonOutput {
		return printJSON(map[string]string{"backup": src, "path": dst, "public_key": c.PublicKey})
	}
	Success("Keystore restored to %s", dst)
	PrintKeyValue("Public key", c.PublicKey)
	return nil
}
