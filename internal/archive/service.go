package archive

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"reportvault/internal/platform/metrics"
	"reportvault/pkg/platform/sentinel"
)

// Service owns the softer archive flows: best-effort persistence for
// on-demand downloads, serve-time corruption checks, and the orphan sweep.
type Service struct {
	store   *Store
	records RecordStore
	logger  *slog.Logger
	metrics *metrics.Metrics

	// floorBytes is the minimum plausible artifact size. Heuristic: a
	// legitimately tiny report is indistinguishable from a truncated one.
	floorBytes int64

	now func() time.Time
}

type ServiceOption func(*Service)

func ServiceWithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func ServiceWithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

func ServiceWithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store *Store, records RecordStore, floorBytes int64, opts ...ServiceOption) (*Service, error) {
	if store == nil || records == nil {
		return nil, fmt.Errorf("archive store and record store are required")
	}

	s := &Service{
		store:      store,
		records:    records,
		floorBytes: floorBytes,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// PersistBestEffort archives an on-demand artifact without failing the
// request: the caller already holds the bytes and serves them from memory, so
// a disk failure is logged and an empty path returned rather than propagated.
func (s *Service) PersistBestEffort(ctx context.Context, content []byte, filename, format, category string, delivery DeliveryMethod) string {
	res, err := s.store.Persist(ctx, content, filename, format, category, delivery, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "on-demand archival failed, serving from memory",
			"filename", filename, "error", err)
		return ""
	}
	return res.AbsolutePath
}

// Open returns an artifact's bytes for serving. A file below the corruption
// floor is structurally corrupt: it is deleted along with its archive record
// and ErrCorrupt returned so the caller reports an error instead of serving
// truncated content. Content that clears the floor is additionally verified
// against the recorded checksum when a record exists; a mismatch returns
// ErrCorrupt but keeps the file for manual inspection.
func (s *Service) Open(ctx context.Context, path string) ([]byte, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("artifact %s: %w", path, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("stat artifact %s: %w", path, err)
	}

	if info.Size() < s.floorBytes {
		s.logger.WarnContext(ctx, "corrupt artifact detected, deleting",
			"path", path, "size", info.Size(), "floor", s.floorBytes)
		if s.metrics != nil {
			s.metrics.CorruptArtifacts.Inc()
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.ErrorContext(ctx, "failed to delete corrupt artifact", "path", path, "error", err)
		}
		// A record without a file must not outlive the cleanup.
		if err := s.records.DeleteByPath(ctx, path); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete record of corrupt artifact", "path", path, "error", err)
		}
		return nil, fmt.Errorf("artifact %s is %d bytes, below the %d byte floor: %w",
			path, info.Size(), s.floorBytes, sentinel.ErrCorrupt)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}

	if rec, err := s.records.FindByPath(ctx, path); err == nil && rec.ChecksumSHA256 != "" {
		if got := checksumHex(content); got != rec.ChecksumSHA256 {
			s.logger.ErrorContext(ctx, "artifact checksum mismatch",
				"path", path, "recorded", rec.ChecksumSHA256[:8], "actual", got[:8])
			if s.metrics != nil {
				s.metrics.CorruptArtifacts.Inc()
			}
			return nil, fmt.Errorf("artifact %s does not match its recorded checksum: %w",
				path, sentinel.ErrCorrupt)
		}
	}
	return content, nil
}

// Orphan is a file on disk with no committed archive record, typically left
// by a commit failure after a successful persist.
type Orphan struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// SweepOrphans walks the archive root and reports files with no matching
// record that are older than the grace period. Report-only: deleting a false
// positive would destroy a compliance artifact, so removal stays a manual
// action.
func (s *Service) SweepOrphans(ctx context.Context, grace time.Duration) ([]Orphan, error) {
	paths, err := s.records.ListPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("orphan sweep: %w", err)
	}
	recorded := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		recorded[p] = struct{}{}
	}

	cutoff := s.now().Add(-grace)

	var orphans []Orphan
	err = filepath.WalkDir(s.store.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := recorded[path]; ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			// Too fresh: may simply not be committed yet.
			return nil
		}
		orphans = append(orphans, Orphan{Path: path, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("orphan sweep walk: %w", err)
	}

	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Path < orphans[j].Path })

	if len(orphans) > 0 {
		s.logger.WarnContext(ctx, "orphaned artifacts found", "count", len(orphans))
	}
	return orphans, nil
}
