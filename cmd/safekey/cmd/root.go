// Package cmd provides the CLI commands for safekey.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abdul-hamid-achik/safekey/internal/config"
)

var (
	cfgFile     string
	dataDir     string
	metricsFile string
	jsonOutput  bool
	verbose     bool

	// configErr holds a config file read failure until a command needs config.
	configErr error
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "safekey",
	Short: "SafeKey - Local credential vault for a wallet signing key",
	Long: `SafeKey protects a wallet private key on your local machine.

A keystore is either password protected, or bound to three factors: this
machine's hardware fingerprint, a master password and a security question.
Triple-factor keystores are also gated by a live 2FA code.

Get started:
  safekey create --public-key <addr>          Password-protected keystore
  safekey create-triple --public-key <addr>   Hardware + password + question + 2FA
  safekey unlock                              Decrypt and verify a keystore

Examples:
  safekey create --public-key 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin
  safekey unlock --show
  safekey 2fa code --derive
  safekey backup ~/backups/wallet.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		Error("%v", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.safekey/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "", "data directory (default ~/.safekey)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	viper.BindPFlag("dir", rootCmd.PersistentFlags().Lookup("dir"))
	viper.BindPFlag("metrics.file", rootCmd.PersistentFlags().Lookup("metrics-file"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	configErr = config.ReadFile(viper.GetViper(), cfgFile)
}

// isVerbose returns whether verbose mode is enabled.
func isVerbose() bool {
	if verbose {
		return true
	}
	return viper.GetBool("verbose")
}
