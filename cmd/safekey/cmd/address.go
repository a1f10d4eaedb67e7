package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/safekey/internal/keystore"
)

var addressCmd = &cobra.Command{
	Use:   "address [keystore|public-key]",
	Short: "Print the public key of a keystore without unlocking it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAddress,
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

func runAddress(cmd *cobra.Command, args []string) error {
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

	pk, err := keystore.PublicKeyOf(path)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]string{"path": path, "public_key": pk})
	}
	fmt.Fprintln(stdout, pk)
	return nil
}
