package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/safekey/internal/store"
)

var (
	forgetForce bool
)

var forgetCmd = &cobra.Command{
	Use:   "forget <public-key>",
	Short: "Remove a wallet from the local index",
	Long: `Remove a wallet from the local index.

The keystore file itself is left on disk. If the wallet was the default,
the default is cleared.

By default, you will be prompted to confirm.
Use --yes or -y to skip the confirmation prompt.`,
	Args: cobra.ExactArgs(1),
	RunE: runForget,
}

func init() {
	rootCmd.AddCommand(forgetCmd)
	forgetCmd.Flags().BoolVarP(&forgetForce, "yes", "y", false, "Skip confirmation prompt")
}

func runForget(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	pk := args[0]
	rec, err := a.store.GetWallet(pk)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no indexed wallet %q", pk)
		}
		return err
	}

	if !forgetForce {
		if !PromptConfirm(fmt.Sprintf("Forget wallet %s?", pk)) {
			Info("Canceled")
			return nil
		}
	}

	if err := a.store.DeleteWallet(pk); err != nil {
		return fmt.Errorf("failed to forget wallet: %w", err)
	}
	if def, err := a.store.GetConfig(store.ConfigDefaultWallet); err == nil && def == pk {
		if err := a.store.SetConfig(store.ConfigDefaultWallet, ""); err != nil {
			return err
		}
	}
	if err := a.store.AppendAudit(&store.AuditEntry{
		Action:    store.ActionForget,
		Scheme:    rec.Scheme,
		PublicKey: pk,
		Path:      rec.Path,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		a.logger.Warn("audit append failed", "error", err)
	}

	Success("Wallet %s removed from the index", pk)
	fmt.Fprintln(stdout, Dim("Keystore file kept at %s", rec.Path))
	return nil
}
