package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reportvault/internal/platform/config"
)

// NewReconcileCommand builds the one-shot reconciliation command. It audits
// every stored snapshot, repairs what it can, and writes the markdown
// compliance report. Exit code 0 means the pass completed, even with failed
// snapshots; those are the report's job to surface.
func NewReconcileCommand() *cobra.Command {
	var reportDir string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Audit and repair all stored snapshots, then write the compliance report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if reportDir != "" {
				cfg.ComplianceReportDir = reportDir
			}
			return runReconcile(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&reportDir, "report-dir", "",
		"directory for the markdown report (defaults to REPORTVAULT_COMPLIANCE_REPORT_DIR)")
	return cmd
}

func runReconcile(cmd *cobra.Command, cfg config.Config) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, "reconciler")
	if err != nil {
		return err
	}
	defer a.close()

	outcome, err := a.job.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	path, err := outcome.WriteMarkdownReport(cfg.ComplianceReportDir, time.Now())
	if err != nil {
		return err
	}

	orphans, err := a.archiveService.SweepOrphans(ctx, cfg.OrphanGrace)
	if err != nil {
		a.logger.Warn("orphan sweep failed", "error", err)
	} else if len(orphans) > 0 {
		a.logger.Warn("orphaned archive files found", "count", len(orphans))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "COMPLIANCE_REPORT_GENERATED: %s\n", path)
	return nil
}
