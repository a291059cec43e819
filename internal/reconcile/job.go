// Package reconcile audits every stored snapshot, repairs legacy content in
// place, and dry-runs the report generators to find content that validates
// but cannot render.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"reportvault/internal/alert"
	"reportvault/internal/compliance"
	"reportvault/internal/platform/metrics"
	"reportvault/internal/report"
	"reportvault/internal/snapshot"
	"reportvault/internal/snapshot/store"
)

// Status classifies one audited snapshot.
type Status string

const (
	StatusRepaired Status = "REPAIRED"
	StatusFailed   Status = "FAILED"
	// StatusCrashed marks content that passed schema validation but crashed
	// a generator dry run.
	StatusCrashed Status = "CRASHED"
)

// Detail is one line of the audit trail, kept for the markdown report.
type Detail struct {
	ID         string
	Status     Status
	Errors     []string
	RepairTime time.Time
}

// Outcome aggregates one reconciliation pass. ValidAlready plus Repaired
// plus Failed equals TotalAudited.
type Outcome struct {
	TotalAudited int
	ValidAlready int
	Repaired     int
	Failed       int
	Details      []Detail
}

// Alerter matches alert.Dispatcher.
type Alerter interface {
	Emit(ctx context.Context, subject, body string, severity compliance.Severity, details map[string]string) alert.Result
}

type Job struct {
	snapshots  store.Store
	log        compliance.Recorder
	generators []report.NamedGenerator
	alerter    Alerter
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Job)

func WithGenerators(gens ...report.NamedGenerator) Option {
	return func(j *Job) {
		j.generators = gens
	}
}

func WithAlerter(a Alerter) Option {
	return func(j *Job) {
		j.alerter = a
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		j.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Job) {
		j.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		j.now = now
	}
}

func NewJob(snapshots store.Store, log compliance.Recorder, opts ...Option) (*Job, error) {
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}

	j := &Job{
		snapshots: snapshots,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	return j, nil
}

// Run audits the full snapshot table. Each snapshot is validated; invalid
// content is normalized, re-validated, and the fix written back. Snapshots
// that are schema-valid after the pass are additionally dry-run through the
// registered generators, since validity does not imply renderability. A
// second run over a repaired store reports Repaired = 0.
func (j *Job) Run(ctx context.Context) (*Outcome, error) {
	recs, err := j.snapshots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconciliation: %w", err)
	}

	j.logger.InfoContext(ctx, "starting reconciliation", "snapshots", len(recs))
	out := &Outcome{}

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reconciliation interrupted: %w", err)
		}
		out.TotalAudited++
		j.auditOne(ctx, rec, out)
	}

	if j.metrics != nil {
		j.metrics.SnapshotsAudited.Add(float64(out.TotalAudited))
		j.metrics.SnapshotsRepaired.Add(float64(out.Repaired))
		j.metrics.SnapshotsFailed.Add(float64(out.Failed))
	}

	j.recordRun(ctx, out)
	j.logger.InfoContext(ctx, "reconciliation complete",
		"total", out.TotalAudited, "valid", out.ValidAlready,
		"repaired", out.Repaired, "failed", out.Failed)
	return out, nil
}

func (j *Job) auditOne(ctx context.Context, rec *store.Record, out *Outcome) {
	var doc map[string]any
	if err := json.Unmarshal(rec.Content, &doc); err != nil {
		out.Failed++
		out.Details = append(out.Details, Detail{
			ID:     rec.ID,
			Status: StatusFailed,
			Errors: []string{fmt.Sprintf("content is not a JSON object: %v", err)},
		})
		return
	}

	if ok, _ := snapshot.Validate(doc); ok {
		if j.dryRun(ctx, rec.ID, doc) {
			out.ValidAlready++
		} else {
			out.Failed++
			out.Details = append(out.Details, Detail{
				ID:     rec.ID,
				Status: StatusCrashed,
				Errors: []string{"generator dry run failed"},
			})
		}
		return
	}

	repaired, err := snapshot.Normalize(rec.Content, rec.ID, j.now())
	if err != nil {
		out.Failed++
		out.Details = append(out.Details, Detail{ID: rec.ID, Status: StatusFailed, Errors: []string{err.Error()}})
		return
	}

	ok, errs := snapshot.Validate(repaired)
	if !ok {
		out.Failed++
		out.Details = append(out.Details, Detail{ID: rec.ID, Status: StatusFailed, Errors: errs})
		return
	}

	if err := j.writeBack(ctx, rec.ID, repaired); err != nil {
		j.logger.ErrorContext(ctx, "failed to persist repair", "report_id", rec.ID, "error", err)
		out.Failed++
		out.Details = append(out.Details, Detail{ID: rec.ID, Status: StatusFailed, Errors: []string{err.Error()}})
		return
	}

	if !j.dryRun(ctx, rec.ID, repaired) {
		out.Failed++
		out.Details = append(out.Details, Detail{
			ID:     rec.ID,
			Status: StatusCrashed,
			Errors: []string{"generator dry run failed after repair"},
		})
		return
	}

	out.Repaired++
	out.Details = append(out.Details, Detail{ID: rec.ID, Status: StatusRepaired, RepairTime: j.now()})
}

func (j *Job) writeBack(ctx context.Context, id string, repaired map[string]any) error {
	content, err := json.Marshal(repaired)
	if err != nil {
		return fmt.Errorf("encode repaired snapshot: %w", err)
	}
	if err := j.snapshots.UpdateContent(ctx, id, content); err != nil {
		return fmt.Errorf("write back repaired snapshot: %w", err)
	}

	j.logger.InfoContext(ctx, "repaired snapshot", "report_id", id)
	j.appendEntry(ctx, compliance.NewEntry(
		compliance.EventSnapshotFix, compliance.SeverityInfo, "Reconciler",
		map[string]any{"report_id": id, "fix": "schema normalization"}, "SYSTEM_RECONCILER"))
	return nil
}

// dryRun renders doc through every registered generator, discarding output.
// Reports false on the first crash, after logging and alerting it.
func (j *Job) dryRun(ctx context.Context, id string, doc map[string]any) bool {
	for _, gen := range j.generators {
		err := j.tryGenerate(gen, doc)
		if err == nil {
			continue
		}

		j.logger.ErrorContext(ctx, "snapshot crashes generator",
			"report_id", id, "generator", gen.Name, "error", err)
		if j.metrics != nil {
			j.metrics.GeneratorCrashes.Inc()
		}
		j.appendEntry(ctx, compliance.NewEntry(
			compliance.EventSnapshotCrash, compliance.SeverityCritical, "Reconciler",
			map[string]any{"report_id": id, "generator": gen.Name, "error": err.Error()},
			"SYSTEM_RECONCILER"))

		if j.alerter != nil {
			res := j.alerter.Emit(ctx,
				fmt.Sprintf("Generator Crash: %s", id),
				fmt.Sprintf("A dry run of the %s generator failed for snapshot %s.\nError: %v", gen.Name, id, err),
				compliance.SeverityCritical,
				map[string]string{"report_id": id, "generator": gen.Name})
			if !res.Delivered {
				j.logger.WarnContext(ctx, "alert not delivered", "report_id", id, "reason", res.Message)
			}
		}
		return false
	}
	return true
}

// tryGenerate contains generator panics; a panicking renderer is exactly the
// failure mode the dry run exists to catch.
func (j *Job) tryGenerate(gen report.NamedGenerator, doc map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator %s panicked: %v", gen.Name, r)
		}
	}()
	_, err = gen.Generate(doc)
	return err
}

func (j *Job) recordRun(ctx context.Context, out *Outcome) {
	severity := compliance.SeverityInfo
	if out.Failed > 0 {
		severity = compliance.SeverityWarning
	}
	j.appendEntry(ctx, compliance.NewEntry(
		compliance.EventReconciliationRun, severity, "Reconciler",
		map[string]any{
			"total_audited": out.TotalAudited,
			"valid_already": out.ValidAlready,
			"repaired":      out.Repaired,
			"failed":        out.Failed,
		}, "SYSTEM_RECONCILER"))
}

func (j *Job) appendEntry(ctx context.Context, entry compliance.Entry) {
	if j.log == nil {
		return
	}
	if err := j.log.Append(ctx, entry); err != nil {
		j.logger.ErrorContext(ctx, "failed to append compliance entry",
			"event", entry.EventType, "error", err)
	}
}
