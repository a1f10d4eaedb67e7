package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/safekey/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List keystores created on this machine",
	Long: `List keystores recorded in the local index.

The index only stores where each keystore is and how it is protected. Use
'safekey address <path>' to read a keystore that was never indexed.`,
	Aliases: []string{"ls"},
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	wallets, err := a.store.ListWallets()
	if err != nil {
		return fmt.Errorf("failed to list wallets: %w", err)
	}
	defaultPK, _ := a.store.GetConfig(store.ConfigDefaultWallet)

	if jsonOutput {
		if wallets == nil {
			wallets = []*store.WalletRecord{}
		}
		return printJSON(wallets)
	}

	if len(wallets) == 0 {
		fmt.Fprintln(stderr, "No keystores found.")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Create one with: safekey create")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	PrintTableHeader(w, " PUBLIC KEY", "SCHEME", "LAST UNLOCK", "PATH")
	for _, rec := range wallets {
		mark := " "
		if rec.PublicKey == defaultPK {
			mark = "*"
		}
		last := "never"
		if rec.LastUnlockedAt != nil {
			last = rec.LastUnlockedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", mark, rec.PublicKey, rec.Scheme, last, rec.Path)
	}
	return w.Flush()
}
