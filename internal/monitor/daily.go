package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reportvault/internal/archive"
	"reportvault/internal/compliance"
	"reportvault/internal/inventory"
	"reportvault/internal/snapshot/store"
)

// SummaryStatus grades the last 24 hours of compliance events.
type SummaryStatus string

const (
	StatusStable   SummaryStatus = "SYSTEM STABLE"
	StatusWarning  SummaryStatus = "WARNINGS DETECTED"
	StatusCritical SummaryStatus = "CRITICAL ISSUES DETECTED"
)

// DailySummary is the executive rollup persisted once per cycle.
type DailySummary struct {
	GeneratedAt    time.Time
	TotalInventory int
	TotalSnapshots int
	NewSnapshots   int
	Warnings       int
	Criticals      int
}

func (s DailySummary) Status() SummaryStatus {
	switch {
	case s.Criticals > 0:
		return StatusCritical
	case s.Warnings > 0:
		return StatusWarning
	default:
		return StatusStable
	}
}

// Render produces the plain-text report body.
func (s DailySummary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily Compliance Report\n")
	fmt.Fprintf(&b, "Date: %s\n\n", s.GeneratedAt.UTC().Format("2006-01-02"))
	b.WriteString("Executive Summary\n")
	fmt.Fprintf(&b, "  Total Inventory Items:       %d\n", s.TotalInventory)
	fmt.Fprintf(&b, "  Total Reports (Snapshots):   %d\n", s.TotalSnapshots)
	fmt.Fprintf(&b, "  New Reports (24h):           %d\n", s.NewSnapshots)
	fmt.Fprintf(&b, "  System Warnings (24h):       %d\n", s.Warnings)
	fmt.Fprintf(&b, "  Critical Failures (24h):     %d\n\n", s.Criticals)
	fmt.Fprintf(&b, "Overall Status: %s\n", s.Status())
	return b.String()
}

// ArtifactStore is the slice of archive.Service the daily reporter needs.
type ArtifactStore interface {
	PersistBestEffort(ctx context.Context, content []byte, filename, format, category string, delivery archive.DeliveryMethod) string
}

// DailyReporter collects the last 24 hours of activity and archives a
// summary artifact. Failures are logged, never propagated; a missed summary
// must not take the sentinel down.
type DailyReporter struct {
	snapshots store.Store
	inventory inventory.Store
	log       compliance.Store
	artifacts ArtifactStore
	logger    *slog.Logger
	now       func() time.Time
}

func NewDailyReporter(snapshots store.Store, inv inventory.Store, log compliance.Store, artifacts ArtifactStore, logger *slog.Logger) *DailyReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyReporter{
		snapshots: snapshots,
		inventory: inv,
		log:       log,
		artifacts: artifacts,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock fixes the summary timestamp source for tests.
func (r *DailyReporter) WithClock(now func() time.Time) *DailyReporter {
	r.now = now
	return r
}

func (r *DailyReporter) collect(ctx context.Context) (DailySummary, error) {
	now := r.now().UTC()
	since := now.Add(-24 * time.Hour)
	summary := DailySummary{GeneratedAt: now}

	var err error
	if summary.TotalInventory, err = r.inventory.Count(ctx); err != nil {
		return summary, fmt.Errorf("daily summary: %w", err)
	}
	if summary.TotalSnapshots, err = r.snapshots.Count(ctx); err != nil {
		return summary, fmt.Errorf("daily summary: %w", err)
	}
	if summary.NewSnapshots, err = r.snapshots.CountSince(ctx, since); err != nil {
		return summary, fmt.Errorf("daily summary: %w", err)
	}
	if summary.Warnings, err = r.log.CountSince(ctx, compliance.SeverityWarning, since); err != nil {
		return summary, fmt.Errorf("daily summary: %w", err)
	}
	if summary.Criticals, err = r.log.CountSince(ctx, compliance.SeverityCritical, since); err != nil {
		return summary, fmt.Errorf("daily summary: %w", err)
	}
	return summary, nil
}

// Report builds and archives the daily summary and records its generation.
func (r *DailyReporter) Report(ctx context.Context) (DailySummary, error) {
	summary, err := r.collect(ctx)
	if err != nil {
		return summary, err
	}

	filename := fmt.Sprintf("daily_compliance_%s", summary.GeneratedAt.Format("20060102"))
	path := r.artifacts.PersistBestEffort(ctx, []byte(summary.Render()),
		filename, "txt", "DAILY_COMPLIANCE", archive.DeliveryDownload)

	entry := compliance.NewEntry(compliance.EventDailyReportGen, compliance.SeverityInfo,
		"DailyReporter",
		map[string]any{
			"filename": filename,
			"path":     path,
			"status":   string(summary.Status()),
		}, "SYSTEM")
	if err := r.log.Append(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "failed to record daily report generation", "error", err)
	}

	r.logger.InfoContext(ctx, "daily compliance summary generated",
		"status", summary.Status(), "path", path)
	return summary, nil
}
