package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"reportvault/pkg/platform/sentinel"
	txcontext "reportvault/pkg/platform/tx"
)

// RecordStore persists archive records.
type RecordStore interface {
	// Insert writes a record. It joins a transaction carried in the context,
	// which TransactionalArchiver relies on for its commit discipline.
	Insert(ctx context.Context, rec *Record) error
	FindByPath(ctx context.Context, path string) (*Record, error)
	// ListPaths returns every recorded file path, for the orphan sweep.
	ListPaths(ctx context.Context) ([]string, error)
	DeleteByPath(ctx context.Context, path string) error
}

// SQLRecordStore is the postgres/sqlite RecordStore.
type SQLRecordStore struct {
	db *sql.DB
}

func NewSQLRecordStore(db *sql.DB) *SQLRecordStore {
	return &SQLRecordStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLRecordStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *SQLRecordStore) Insert(ctx context.Context, rec *Record) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO report_archives (
			id, report_id, filename, file_path, created_at,
			related_entity_id, file_size_bytes, checksum_sha256, user_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.ReportID, rec.Filename, rec.FilePath, rec.CreatedAt.UTC(),
		nullIfEmpty(rec.RelatedEntityID), rec.FileSizeBytes, rec.ChecksumSHA256, nullIfEmpty(rec.UserID))
	if err != nil {
		return fmt.Errorf("insert archive record: %w", err)
	}
	return nil
}

func (s *SQLRecordStore) FindByPath(ctx context.Context, path string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, report_id, filename, file_path, created_at,
		       related_entity_id, file_size_bytes, checksum_sha256, user_id
		FROM report_archives
		WHERE file_path = $1
	`, path)

	var (
		rec     Record
		related sql.NullString
		userID  sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.ReportID, &rec.Filename, &rec.FilePath, &rec.CreatedAt,
		&related, &rec.FileSizeBytes, &rec.ChecksumSHA256, &userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find archive record by path: %w", err)
	}
	rec.RelatedEntityID = related.String
	rec.UserID = userID.String
	return &rec, nil
}

func (s *SQLRecordStore) ListPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path FROM report_archives`)
	if err != nil {
		return nil, fmt.Errorf("list archive paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan archive path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive paths: %w", err)
	}
	return paths, nil
}

func (s *SQLRecordStore) DeleteByPath(ctx context.Context, path string) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM report_archives WHERE file_path = $1`, path); err != nil {
		return fmt.Errorf("delete archive record: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// InMemoryRecordStore backs unit tests.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	// FailInsert simulates a database commit failure.
	FailInsert error
}

func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{records: make(map[string]*Record)}
}

func (s *InMemoryRecordStore) Insert(_ context.Context, rec *Record) error {
	if s.FailInsert != nil {
		return s.FailInsert
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	s.records[rec.FilePath] = &clone
	return nil
}

func (s *InMemoryRecordStore) FindByPath(_ context.Context, path string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[path]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *InMemoryRecordStore) ListPaths(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.records))
	for p := range s.records {
		paths = append(paths, p)
	}
	return paths, nil
}

func (s *InMemoryRecordStore) DeleteByPath(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, path)
	return nil
}
