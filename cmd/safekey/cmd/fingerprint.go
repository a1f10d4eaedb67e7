package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Show this machine's hardware fingerprint",
	Long: `Run the hardware probes and print the resulting fingerprint.

Triple-factor keystores are bound to this value. If it changes (new network
card, replaced disk, different probes in config) those keystores can no
longer be opened on this machine.`,
	RunE: runFingerprint,
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)
}

func runFingerprint(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if fingerprintSource != nil {
		fp, err := a.vault.Fingerprint(a.ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"fingerprint": fp})
		}
		PrintKeyValue("Fingerprint", fp)
		return nil
	}

	res, err := a.collector.Collect(a.ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{
			"fingerprint": res.Fingerprint,
			"components":  res.Components,
			"failed":      res.Failed,
		})
	}

	PrintKeyValue("Fingerprint", res.Fingerprint)
	PrintKeyValue("Components", strings.Join(res.Components, ", "))
	if len(res.Failed) > 0 {
		Warning("Unavailable probes: %s", strings.Join(res.Failed, ", "))
	}
	return nil
}
