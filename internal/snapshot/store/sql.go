package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reportvault/pkg/platform/sentinel"
)

// SQLStore persists snapshot records in PostgreSQL or sqlite. Queries use $N
// placeholders, which both lib/pq and go-sqlite3 accept.
type SQLStore struct {
	db *sql.DB
}

func NewSQL(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, created_by, row_count, created_at, expires_at
		FROM report_snapshots
		WHERE id = $1
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, created_by, row_count, created_at, expires_at
		FROM report_snapshots
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Put(ctx context.Context, rec *Record) error {
	var expires *time.Time
	if rec.ExpiresAt != nil {
		t := rec.ExpiresAt.UTC()
		expires = &t
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_snapshots (id, content, created_by, row_count, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, string(rec.Content), rec.CreatedBy, rec.RowCount, rec.CreatedAt.UTC(), expires)
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLStore) UpdateContent(ctx context.Context, id string, content json.RawMessage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE report_snapshots SET content = $1 WHERE id = $2
	`, string(content), id)
	if err != nil {
		return fmt.Errorf("update snapshot %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update snapshot %s: %w", id, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM report_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func (s *SQLStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM report_snapshots WHERE created_at >= $1
	`, since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshots since %s: %w", since, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec     Record
		content string
		expires sql.NullTime
	)
	if err := row.Scan(&rec.ID, &content, &rec.CreatedBy, &rec.RowCount, &rec.CreatedAt, &expires); err != nil {
		return nil, err
	}
	rec.Content = json.RawMessage(content)
	if expires.Valid {
		t := expires.Time
		rec.ExpiresAt = &t
	}
	return &rec, nil
}
