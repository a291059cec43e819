// Package archive persists rendered report artifacts under a deterministic
// hierarchical layout and keeps the database in step with the disk. Layout:
//
//	{root}/{DeliveryMethod}/{CATEGORY}/{YYYY}/{MM}/{filename}.{ext}
//
// Artifacts are immutable: they are only ever deleted (corruption cleanup) or
// superseded by a new artifact under a new report id.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"reportvault/internal/platform/metrics"
)

// PersistResult describes a written artifact.
type PersistResult struct {
	AbsolutePath string
	Checksum     string
	Size         int64
}

// Store writes and locates artifacts on disk.
type Store struct {
	root    string
	cache   PathCache
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type StoreOption func(*Store)

func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPathCache installs a lookup cache consulted before disk.
func WithPathCache(cache PathCache) StoreOption {
	return func(s *Store) {
		s.cache = cache
	}
}

func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates the store and its root directory.
func NewStore(root string, opts ...StoreOption) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create archive root %s: %w", root, err)
	}

	s := &Store{root: root}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Root returns the archive root directory.
func (s *Store) Root() string {
	return s.root
}

// ArtifactPath builds the deterministic absolute path for an artifact.
func (s *Store) ArtifactPath(filename, format, category string, delivery DeliveryMethod, ts time.Time) string {
	ts = ts.UTC()
	return filepath.Join(
		s.root,
		string(delivery),
		safeCategory(category),
		ts.Format("2006"),
		ts.Format("01"),
		withExt(filename, format),
	)
}

// Persist writes an artifact, computing its SHA-256 and size. Directory
// creation is idempotent and safe under concurrent callers; filename
// uniqueness is the caller's concern (report ids embed a random suffix).
// Unrecoverable I/O failure is returned to the caller, whose flow decides
// whether it is fatal.
func (s *Store) Persist(ctx context.Context, content []byte, filename, format, category string, delivery DeliveryMethod, ts time.Time) (*PersistResult, error) {
	checksum := checksumHex(content)

	fullPath := s.ArtifactPath(filename, format, category, delivery, ts)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0o640); err != nil {
		return nil, fmt.Errorf("write artifact %s: %w", fullPath, err)
	}

	s.logger.InfoContext(ctx, "artifact persisted",
		"path", fullPath,
		"sha256", checksum[:8],
		"size", len(content),
	)
	if s.metrics != nil {
		s.metrics.ArtifactsPersisted.Inc()
	}

	if s.cache != nil {
		s.cache.Put(ctx, fullPath)
	}

	return &PersistResult{
		AbsolutePath: fullPath,
		Checksum:     checksum,
		Size:         int64(len(content)),
	}, nil
}

// LookupCached returns the artifact path when a previously persisted file for
// the same (filename, format, category, delivery, month) exists with non-zero
// size, avoiding a regeneration. Returns "" on miss; lookup never fails.
func (s *Store) LookupCached(ctx context.Context, filename, format, category string, delivery DeliveryMethod, ts time.Time) string {
	fullPath := s.ArtifactPath(filename, format, category, delivery, ts)

	if s.cache != nil && s.cache.Has(ctx, fullPath) {
		// Trust but verify: the cache can outlive a corruption cleanup.
		if fileHasContent(fullPath) {
			s.logger.DebugContext(ctx, "artifact cache hit", "path", fullPath, "via", "redis")
			return fullPath
		}
		s.cache.Forget(ctx, fullPath)
	}

	if fileHasContent(fullPath) {
		s.logger.DebugContext(ctx, "artifact cache hit", "path", fullPath, "via", "disk")
		if s.cache != nil {
			s.cache.Put(ctx, fullPath)
		}
		return fullPath
	}
	return ""
}

// checksumHex is the canonical artifact hash, shared by the write path and
// the serve-time verification.
func checksumHex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func fileHasContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
