package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abdul-hamid-achik/safekey/internal/fsutil"
	"github.com/abdul-hamid-achik/safekey/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and index status",
	Long:  "Show the data directory, config file, active encryption defaults, default wallet and number of indexed keystores.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	meta, err := a.store.GetMeta()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	count, err := a.store.CountWallets()
	if err != nil {
		return fmt.Errorf("count wallets: %w", err)
	}
	defaultPK, _ := a.store.GetConfig(store.ConfigDefaultWallet)
	configFile := viper.ConfigFileUsed()
	totpConfigured := fsutil.Exists(a.cfg.TOTPConfigPath())

	if jsonOutput {
		return printJSON(map[string]any{
			"dir":             a.cfg.Dir,
			"config_file":     configFile,
			"index_id":        meta.IndexID,
			"index_created":   meta.CreatedAt,
			"scheme":          a.cfg.Keystore.Scheme,
			"cipher":          a.cfg.Keystore.Cipher,
			"recovery":        a.cfg.Keystore.Recovery,
			"wallet_count":    count,
			"default_wallet":  defaultPK,
			"totp_configured": totpConfigured,
		})
	}

	if configFile == "" {
		configFile = Dim("(defaults)")
	}
	if defaultPK == "" {
		defaultPK = Dim("(none)")
	}
	PrintKeyValue("Directory", a.cfg.Dir)
	PrintKeyValue("Config", configFile)
	PrintKeyValue("Index", meta.IndexID)
	PrintKeyValue("Default scheme", fmt.Sprintf("%s (%s)", a.cfg.Keystore.Scheme, a.cfg.Keystore.Cipher))
	PrintKeyValue("Recovery keystores", fmt.Sprintf("%t", a.cfg.Keystore.Recovery))
	PrintKeyValue("Wallets", fmt.Sprintf("%d", count))
	PrintKeyValue("Default wallet", defaultPK)
	PrintKeyValue("Simple 2FA", fmt.Sprintf("%t", totpConfigured))
	return nil
}
