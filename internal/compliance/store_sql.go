package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	txcontext "reportvault/pkg/platform/tx"
)

// SQLStore persists compliance entries. Appends participate in an enclosing
// transaction when one is carried in the context, so audit rows commit or
// roll back together with the work they describe.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *SQLStore) Append(ctx context.Context, entry Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal compliance details: %w", err)
	}
	if entry.Details == nil {
		details = []byte("{}")
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO compliance_log (id, timestamp, event_type, severity, component, details, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.Timestamp.UTC(), string(entry.EventType), string(entry.Severity),
		entry.Component, string(details), entry.UserID)
	if err != nil {
		return fmt.Errorf("insert compliance entry: %w", err)
	}
	return nil
}

func (s *SQLStore) CountSince(ctx context.Context, severity Severity, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM compliance_log WHERE severity = $1 AND timestamp >= $2
	`, string(severity), since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count compliance entries: %w", err)
	}
	return n, nil
}

func (s *SQLStore) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, event_type, severity, component, details, user_id
		FROM compliance_log
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query compliance entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			eventType string
			severity  string
			details   string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &eventType, &severity, &e.Component, &details, &e.UserID); err != nil {
			return nil, fmt.Errorf("scan compliance entry: %w", err)
		}
		e.EventType = EventType(eventType)
		e.Severity = Severity(severity)
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("decode compliance details: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compliance entries: %w", err)
	}
	return entries, nil
}
