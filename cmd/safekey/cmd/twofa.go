package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/safekey/internal/fsutil"
	"github.com/abdul-hamid-achik/safekey/internal/totp"
	"github.com/abdul-hamid-achik/safekey/internal/vault"
)

var (
	twofaDerive  bool
	twofaForce   bool
	twofaWindows int
	twofaCount   int
	twofaTrace   bool
)

var twofaCmd = &cobra.Command{
	Use:   "2fa",
	Short: "Manage one-time codes",
	Long: `Manage time-based one-time codes.

Two kinds of secret are supported:
  simple   a random secret saved in <dir>/totp.json
  derived  (--derive) the secret used by triple-factor keystores, re-derived
           from this machine's hardware and the master password`,
}

var twofaSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Provision an authenticator app",
	Long: `Show a QR code for an authenticator app and confirm one code.

Without --derive a new random secret is generated and saved. With --derive
the triple-factor secret is rebuilt, which recovers the second factor after
losing the authenticator app.

Examples:
  safekey 2fa setup
  safekey 2fa setup --derive`,
	RunE: runTwofaSetup,
}

var twofaCodeCmd = &cobra.Command{
	Use:   "code",
	Short: "Print the current code",
	RunE:  runTwofaCode,
}

var twofaWindowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "Print codes for the surrounding time steps",
	Long:  "Print the codes for the current step and n steps either side. Useful when debugging clock skew.",
	RunE:  runTwofaWindows,
}

var twofaVerifyCmd = &cobra.Command{
	Use:   "verify <code>",
	Short: "Check a code against the current time",
	Args:  cobra.ExactArgs(1),
	RunE:  runTwofaVerify,
}

var twofaBackupCodesCmd = &cobra.Command{
	Use:   "backup-codes",
	Short: "Generate printable backup codes",
	Long: `Generate random XXXX-XXXX codes to keep with your paper records.

Backup codes are display only. The unlock flow never accepts them in place of
a live code.`,
	RunE: runTwofaBackupCodes,
}

func init() {
	rootCmd.AddCommand(twofaCmd)
	twofaCmd.AddCommand(twofaSetupCmd, twofaCodeCmd, twofaWindowsCmd, twofaVerifyCmd, twofaBackupCodesCmd)

	twofaCmd.PersistentFlags().BoolVar(&twofaDerive, "derive", false, "use the secret derived from hardware and master password")
	twofaSetupCmd.Flags().BoolVarP(&twofaForce, "force", "f", false, "replace an existing simple 2FA secret")
	twofaWindowsCmd.Flags().IntVarP(&twofaWindows, "steps", "n", 1, "steps either side of now")
	twofaVerifyCmd.Flags().BoolVar(&twofaTrace, "trace", false, "print every window that was checked")
	twofaBackupCodesCmd.Flags().IntVarP(&twofaCount, "count", "n", 8, "number of codes")
}

// loadManager returns the simple or derived TOTP manager.
func (a *app) loadManager() (*totp.Manager, error) {
	if twofaDerive {
		password, err := prompter.ReadSecret("Master password: ")
		if err != nil {
			return nil, err
		}
		return a.vault.DeriveTOTP(a.ctx, password)
	}

	cfg, err := totp.LoadConfig(a.cfg.TOTPConfigPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("2FA not set up, run 'safekey 2fa setup' first")
		}
		return nil, err
	}
	return totp.NewManager(cfg, totp.WithVerifyHook(a.metrics.ObserveTOTP))
}

func runTwofaSetup(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var m *totp.Manager
	if twofaDerive {
		if m, err = a.loadManager(); err != nil {
			return err
		}
	} else {
		path := a.cfg.TOTPConfigPath()
		if fsutil.Exists(path) && !twofaForce {
			return fmt.Errorf("%w: %s (use --force to replace)", vault.ErrExists, path)
		}
		secret, err := totp.GenerateSecret(a.cfg.TOTP.Issuer, a.cfg.TOTP.Account)
		if err != nil {
			return err
		}
		cfg := totp.DefaultConfig()
		cfg.Secret = secret
		cfg.Issuer = a.cfg.TOTP.Issuer
		cfg.Account = a.cfg.TOTP.Account
		if m, err = totp.NewManager(cfg, totp.WithVerifyHook(a.metrics.ObserveTOTP)); err != nil {
			return err
		}
	}

	if err := m.Provision(stdout); err != nil {
		return err
	}
	if _, err := confirmCode(m.Verify); err != nil {
		return err
	}

	if twofaDerive {
		Success("Authenticator matches the derived secret")
		return nil
	}

	if err := totp.SaveConfig(a.cfg.TOTPConfigPath(), m.Config()); err != nil {
		return err
	}
	codes, err := totp.GenerateBackupCodes(8)
	if err != nil {
		return err
	}
	Success("2FA enabled")
	fmt.Fprintln(stdout, Bold("Backup codes (store offline):"))
	for _, c := range codes {
		fmt.Fprintf(stdout, "  %s\n", c)
	}
	return nil
}

func runTwofaCode(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.loadManager()
	if err != nil {
		return err
	}
	code, err := m.GenerateCode()
	if err != nil {
		return err
	}
	remaining := m.RemainingTime()

	if jsonOutput {
		return printJSON(map[string]any{
			"code":              code,
			"remaining_seconds": int(remaining / time.Second),
		})
	}
	fmt.Fprintf(stdout, "%s %s\n", Bold("%s", code), Dim("(valid for %s)", remaining))
	return nil
}

func runTwofaWindows(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.loadManager()
	if err != nil {
		return err
	}
	steps, err := m.CodesForWindows(twofaWindows)
	if err != nil {
		return err
	}

	if jsonOutput {
		out := make([]map[string]any, 0, len(steps))
		for _, s := range steps {
			out = append(out, map[string]any{"offset": s.Offset, "time": s.Time.UTC(), "code": s.Code})
		}
		return printJSON(out)
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	PrintTableHeader(w, "OFFSET", "TIME", "CODE")
	for _, s := range steps {
		fmt.Fprintf(w, "%+d\t%s\t%s\n", s.Offset, s.Time.Local().Format(time.TimeOnly), s.Code)
	}
	return w.Flush()
}

func runTwofaVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.loadManager()
	if err != nil {
		return err
	}
	ok, trace := m.VerifyExtended(args[0])

	if jsonOutput {
		out := map[string]any{"valid": ok}
		if twofaTrace {
			out["trace"] = trace
		}
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		if twofaTrace {
			fmt.Fprint(stdout, trace.String())
		}
		if ok {
			Success("Code is valid")
		}
	}
	if !ok {
		return vault.ErrInvalidCode
	}
	return nil
}

func runTwofaBackupCodes(_ *cobra.Command, _ []string) error {
	codes, err := totp.GenerateBackupCodes(twofaCount)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(codes)
	}
	for _, c := range codes {
		fmt.Fprintln(stdout, c)
	}
	return nil
}
