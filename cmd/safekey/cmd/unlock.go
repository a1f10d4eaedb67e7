package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/safekey/internal/prompt"
)

var unlockShow bool

var unlockCmd = &cobra.Command{
	Use:   "unlock [keystore|public-key]",
	Short: "Unlock a keystore",
	Long: `Decrypt a keystore with its factors.

Password keystores ask for the master password. Triple-factor keystores check
this machine's hardware, then ask for the master password, the security
answer and a live 2FA code. Any wrong static factor reports the same
"authentication failed" error.

Without an argument the default wallet is used.

Examples:
  safekey unlock
  safekey unlock ./wallet.json --show
  safekey unlock 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUnlock,
}

func init() {
	rootCmd.AddCommand(unlockCmd)
	unlockCmd.Flags().BoolVar(&unlockShow, "show", false, "print the private key to stdout")
}

func runUnlock(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	path, err := a.resolveWallet(arg)
	if err != nil {
		return err
	}

	s, err := a.vault.Open(a.ctx, path, prompt.Factors{P: prompter})
	if err != nil {
		return fmt.Errorf("unlock %s: %w", path, err)
	}
	defer s.Destroy()

	out := map[string]any{
		"path":            path,
		"public_key":      s.PublicKey,
		"encryption_type": s.Scheme,
		"unlocked_at":     s.UnlockedAt,
	}
	var key string
	if unlockShow {
		if key, err = s.PrivateKey(); err != nil {
			return err
		}
		out["private_key"] = key
	}

	if jsonOutput {
		return printJSON(out)
	}

	Success("Keystore unlocked")
	PrintKeyValue("Public key", s.PublicKey)
	PrintKeyValue("Encryption", string(s.Scheme))
	if unlockShow {
		PrintKeyValue("Private key", key)
	}
	return nil
}
