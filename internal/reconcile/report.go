package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ReportFilename is the fixed artifact name; each run overwrites the last so
// operators always read the current state.
const ReportFilename = "compliance_report.md"

// IntegrityRating is the percentage of snapshots that are usable after the
// pass. An empty table rates 100.
func (o *Outcome) IntegrityRating() float64 {
	if o.TotalAudited == 0 {
		return 100
	}
	return float64(o.ValidAlready+o.Repaired) / float64(o.TotalAudited) * 100
}

// RenderMarkdown produces the compliance report artifact body.
func (o *Outcome) RenderMarkdown(generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# System Integrity & Compliance Report\n")
	fmt.Fprintf(&b, "Generated at: %s\n\n", generatedAt.UTC().Format("2006-01-02T15:04:05Z"))

	b.WriteString("## Reconciliation Metrics\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| :--- | :--- |\n")
	fmt.Fprintf(&b, "| **Total Audited** | %d |\n", o.TotalAudited)
	fmt.Fprintf(&b, "| **Valid (No Action Needed)** | %d |\n", o.ValidAlready)
	fmt.Fprintf(&b, "| **Repaired (Self-Healed)** | %d |\n", o.Repaired)
	fmt.Fprintf(&b, "| **Failed (Manual Action Required)** | %d |\n\n", o.Failed)

	fmt.Fprintf(&b, "## Integrity Rating: %.2f%%\n\n", o.IntegrityRating())

	b.WriteString("## Detailed Log\n")
	for _, d := range o.Details {
		switch d.Status {
		case StatusRepaired:
			fmt.Fprintf(&b, "- ✅ Snapshot `%s`: Repaired successfully.\n", d.ID)
		case StatusCrashed:
			fmt.Fprintf(&b, "- ❌ Snapshot `%s`: Crashes report generators. Errors: %s\n", d.ID, strings.Join(d.Errors, "; "))
		default:
			fmt.Fprintf(&b, "- ❌ Snapshot `%s`: Irreparable. Errors: %s\n", d.ID, strings.Join(d.Errors, "; "))
		}
	}
	return b.String()
}

// WriteMarkdownReport writes the rendered report under dir and returns its
// path.
func (o *Outcome) WriteMarkdownReport(dir string, generatedAt time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create compliance report dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, ReportFilename)
	if err := os.WriteFile(path, []byte(o.RenderMarkdown(generatedAt)), 0o640); err != nil {
		return "", fmt.Errorf("write compliance report: %w", err)
	}
	return path, nil
}
