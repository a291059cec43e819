// Package cli wires configuration into the reconcile and sentinel
// subcommands.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the reportvault command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reportvault",
		Short:         "Compliance report archival and integrity tooling",
		Long:          "Persists compliance report artifacts, audits stored snapshots, and runs the continuous integrity monitor.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewReconcileCommand())
	cmd.AddCommand(NewSentinelCommand())

	return cmd
}
