// Package store persists snapshot records. Content is held as raw JSON so
// the repair path can decode with document key order intact.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Record is a persisted snapshot row.
type Record struct {
	ID        string
	Content   json.RawMessage
	CreatedBy string
	RowCount  int
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Store is the snapshot persistence contract. Implementations must be safe
// for concurrent use by short-lived request handlers.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Put(ctx context.Context, rec *Record) error
	// UpdateContent replaces a snapshot's content in place. This is the only
	// permitted mutation and backs the repair write-through.
	UpdateContent(ctx context.Context, id string, content json.RawMessage) error
	Count(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}
