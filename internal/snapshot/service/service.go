// Package service implements the snapshot read path: loads validate, repair
// themselves when legacy content is found, and write permanent fixes back.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"reportvault/internal/alert"
	"reportvault/internal/compliance"
	"reportvault/internal/snapshot"
	"reportvault/internal/snapshot/store"
	"reportvault/pkg/platform/sentinel"
)

// Alerter is the administrator notification boundary. Emit never fails; the
// Result is logged by this service.
type Alerter interface {
	Emit(ctx context.Context, subject, body string, severity compliance.Severity, details map[string]string) alert.Result
}

type Service struct {
	store   store.Store
	log     compliance.Recorder
	alerter Alerter
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAlerter(a Alerter) Option {
	return func(s *Service) {
		s.alerter = a
	}
}

// WithClock fixes the repair timestamp source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(st store.Store, log compliance.Recorder, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}

	svc := &Service{
		store: st,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// Load fetches a snapshot and returns canonical content. Valid content is
// returned unchanged. Invalid content is normalized, re-validated, and the
// repair is written back once; irreparable content returns ErrUnusable and
// raises a CRITICAL alert. Callers must treat ErrUnusable as terminal.
func (s *Service) Load(ctx context.Context, id string) (map[string]any, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.Content, &doc); err != nil {
		s.reportUnusable(ctx, id, []string{fmt.Sprintf("content is not a JSON object: %v", err)})
		return nil, fmt.Errorf("snapshot %s: %w", id, sentinel.ErrUnusable)
	}

	ok, errs := snapshot.Validate(doc)
	if ok {
		return doc, nil
	}

	s.logger.WarnContext(ctx, "snapshot failed validation, attempting repair",
		"report_id", id, "errors", errs)

	repaired, err := snapshot.Normalize(rec.Content, id, s.now())
	if err != nil {
		s.reportUnusable(ctx, id, []string{err.Error()})
		return nil, fmt.Errorf("snapshot %s: %w", id, sentinel.ErrUnusable)
	}

	if ok, postErrs := snapshot.Validate(repaired); !ok {
		s.reportUnusable(ctx, id, postErrs)
		return nil, fmt.Errorf("snapshot %s: %w", id, sentinel.ErrUnusable)
	}

	// Write the fix back only when content genuinely changed, so repeated
	// loads after a successful repair never re-trigger a write.
	if !reflect.DeepEqual(doc, repaired) {
		if err := s.writeBack(ctx, id, repaired, errs); err != nil {
			// The caller still gets usable content; the permanent fix is
			// retried on the next load or by reconciliation.
			s.logger.ErrorContext(ctx, "failed to persist snapshot repair",
				"report_id", id, "error", err)
		}
	}

	return repaired, nil
}

func (s *Service) writeBack(ctx context.Context, id string, repaired map[string]any, originalErrs []string) error {
	content, err := json.Marshal(repaired)
	if err != nil {
		return fmt.Errorf("encode repaired snapshot: %w", err)
	}
	if err := s.store.UpdateContent(ctx, id, content); err != nil {
		return fmt.Errorf("write back repaired snapshot: %w", err)
	}

	s.logger.InfoContext(ctx, "snapshot repaired and written back", "report_id", id)

	if s.log != nil {
		entry := compliance.NewEntry(compliance.EventSnapshotFix, compliance.SeverityInfo, "SnapshotRepository",
			map[string]any{
				"report_id":       id,
				"original_errors": originalErrs,
				"action":          "normalized content structure",
			}, "SYSTEM")
		if err := s.log.Append(ctx, entry); err != nil {
			s.logger.ErrorContext(ctx, "failed to record snapshot fix", "report_id", id, "error", err)
		}
	}
	return nil
}

func (s *Service) reportUnusable(ctx context.Context, id string, errs []string) {
	s.logger.ErrorContext(ctx, "snapshot is irreparable", "report_id", id, "errors", errs)

	if s.alerter != nil {
		res := s.alerter.Emit(ctx,
			fmt.Sprintf("Irreparable Snapshot Detected: %s", id),
			fmt.Sprintf("Snapshot %s cannot be used for report generation.\nValidation errors: %v", id, errs),
			compliance.SeverityCritical,
			map[string]string{"report_id": id},
		)
		if !res.Delivered {
			s.logger.WarnContext(ctx, "alert not delivered", "report_id", id, "reason", res.Message)
		}
	}
}
