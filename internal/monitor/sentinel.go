// Package monitor runs the long-lived integrity loop: inventory spot checks,
// snapshot reconciliation, and the daily compliance summary, on a fixed
// interval.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reportvault/internal/alert"
	"reportvault/internal/compliance"
	"reportvault/internal/inventory"
	"reportvault/internal/platform/metrics"
	"reportvault/internal/reconcile"
)

type HealthChecker interface {
	Check(ctx context.Context) (inventory.HealthReport, error)
}

type Reconciler interface {
	Run(ctx context.Context) (*reconcile.Outcome, error)
}

type Alerter interface {
	Emit(ctx context.Context, subject, body string, severity compliance.Severity, details map[string]string) alert.Result
}

// Monitor is single-threaded: cycles never overlap because the next one only
// starts after the previous finished and the interval elapsed.
type Monitor struct {
	health   HealthChecker
	job      Reconciler
	daily    *DailyReporter
	alerter  Alerter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
}

type Option func(*Monitor)

func WithAlerter(a Alerter) Option {
	return func(m *Monitor) {
		m.alerter = a
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mx
	}
}

func New(health HealthChecker, job Reconciler, daily *DailyReporter, interval time.Duration, opts ...Option) (*Monitor, error) {
	if health == nil || job == nil || daily == nil {
		return nil, fmt.Errorf("health checker, reconciliation job, and daily reporter are required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sentinel interval must be positive, got %s", interval)
	}

	m := &Monitor{
		health:   health,
		job:      job,
		daily:    daily,
		interval: interval,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m, nil
}

// RunOnce executes a single cycle and returns its error, for cron and tests.
func (m *Monitor) RunOnce(ctx context.Context) error {
	return m.cycle(ctx)
}

// Run loops until ctx is cancelled. A failed cycle is logged and alerted,
// then the loop sleeps and continues; monitoring must outlive the incidents
// it observes.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "sentinel started", "interval", m.interval)

	for {
		if err := m.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.ErrorContext(ctx, "sentinel cycle failed", "error", err)
			if m.metrics != nil {
				m.metrics.SentinelFailures.Inc()
			}
			if m.alerter != nil {
				res := m.alerter.Emit(ctx, "Sentinel Cycle Failed",
					fmt.Sprintf("The integrity monitor cycle failed and will retry after %s.\nError: %v", m.interval, err),
					compliance.SeverityCritical, nil)
				if !res.Delivered {
					m.logger.WarnContext(ctx, "alert not delivered", "reason", res.Message)
				}
			}
		}

		select {
		case <-ctx.Done():
			m.logger.InfoContext(ctx, "sentinel stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-time.After(m.interval):
		}
	}
}

func (m *Monitor) cycle(ctx context.Context) error {
	started := time.Now()
	m.logger.InfoContext(ctx, "sentinel cycle starting")

	health, err := m.health.Check(ctx)
	if err != nil {
		return fmt.Errorf("inventory health check: %w", err)
	}
	if !health.Healthy() {
		m.logger.WarnContext(ctx, "inventory health degraded",
			"missing_name_count", health.MissingNameCount)
	}

	outcome, err := m.job.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation: %w", err)
	}

	summary, err := m.daily.Report(ctx)
	if err != nil {
		return fmt.Errorf("daily summary: %w", err)
	}

	if m.metrics != nil {
		m.metrics.SentinelCycles.Inc()
	}
	m.logger.InfoContext(ctx, "sentinel cycle complete",
		"duration", time.Since(started),
		"audited", outcome.TotalAudited,
		"repaired", outcome.Repaired,
		"failed", outcome.Failed,
		"status", summary.Status())
	return nil
}
