package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/safekey/internal/store"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent keystore activity",
	Long:  "Show the local audit trail of creates, unlocks, failed unlocks, backups and restores, newest first.",
	RunE:  runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "maximum entries (0 for all)")
}

func runAudit(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.store.ListAudit(auditLimit)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if jsonOutput {
		if entries == nil {
			entries = []*store.AuditEntry{}
		}
		return printJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(stderr, "No activity recorded.")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	PrintTableHeader(w, "TIME", "ACTION", "SCHEME", "PUBLIC KEY")
	for _, e := range entries {
		action := e.Action
		if e.Action == store.ActionUnlockFailed {
			action = errorColor.Sprint(action)
			if reason, ok := e.Metadata["reason"].(string); ok {
				action += Dim(" (%s)", reason)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), action, e.Scheme, e.PublicKey)
	}
	return w.Flush()
}
