// Package inventory holds the part records that feed report snapshots and
// the health check over them.
package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// Part is a single tracked inventory item.
type Part struct {
	ID       string
	PartName string
	TagColor string
	Location string
}

type Store interface {
	Put(ctx context.Context, part *Part) error
	Count(ctx context.Context) (int, error)
	// CountMissingName counts parts whose name is absent or blank. These
	// render as empty rows in generated reports.
	CountMissingName(ctx context.Context) (int, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Put(ctx context.Context, part *Part) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_parts (id, part_name, tag_color, location)
		VALUES ($1, $2, $3, $4)`,
		part.ID, part.PartName, part.TagColor, part.Location)
	if err != nil {
		return fmt.Errorf("insert inventory part %s: %w", part.ID, err)
	}
	return nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_parts`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count inventory parts: %w", err)
	}
	return n, nil
}

func (s *SQLStore) CountMissingName(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM inventory_parts
		WHERE part_name IS NULL OR TRIM(part_name) = ''`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unnamed inventory parts: %w", err)
	}
	return n, nil
}

// InMemoryStore backs unit tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	parts map[string]Part
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{parts: make(map[string]Part)}
}

func (s *InMemoryStore) Put(_ context.Context, part *Part) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts[part.ID] = *part
	return nil
}

func (s *InMemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.parts), nil
}

func (s *InMemoryStore) CountMissingName(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.parts {
		if strings.TrimSpace(p.PartName) == "" {
			n++
		}
	}
	return n, nil
}
