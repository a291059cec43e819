package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"reportvault/internal/compliance"
)

// HealthReport summarizes one inventory health pass.
type HealthReport struct {
	TotalParts       int
	MissingNameCount int
}

func (r HealthReport) Healthy() bool {
	return r.MissingNameCount == 0
}

// Checker flags inventory data that degrades generated reports. Unnamed
// parts are not an error, they render as blank rows, so findings go to the
// compliance log as warnings rather than failing anything.
type Checker struct {
	store  Store
	log    compliance.Recorder
	logger *slog.Logger
}

func NewChecker(store Store, log compliance.Recorder, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{store: store, log: log, logger: logger}
}

func (c *Checker) Check(ctx context.Context) (HealthReport, error) {
	total, err := c.store.Count(ctx)
	if err != nil {
		return HealthReport{}, fmt.Errorf("inventory health: %w", err)
	}
	missing, err := c.store.CountMissingName(ctx)
	if err != nil {
		return HealthReport{}, fmt.Errorf("inventory health: %w", err)
	}

	report := HealthReport{TotalParts: total, MissingNameCount: missing}
	if report.Healthy() {
		c.logger.DebugContext(ctx, "inventory health ok", "total_parts", total)
		return report, nil
	}

	c.logger.WarnContext(ctx, "inventory parts with missing names",
		"missing_name_count", missing, "total_parts", total)

	if c.log != nil {
		entry := compliance.NewEntry(compliance.EventInventoryHealth, compliance.SeverityWarning,
			"InventoryHealthChecker",
			map[string]any{
				"missing_name_count": missing,
				"total_parts":        total,
				"impact":             "parts render as blank rows in generated reports",
			}, "SYSTEM")
		if err := c.log.Append(ctx, entry); err != nil {
			c.logger.ErrorContext(ctx, "failed to record inventory health finding", "error", err)
		}
	}
	return report, nil
}
