// Package compliance is the append-only audit trail for the archival
// subsystem. Entries are written by any component detecting a validation
// failure, repair, crash, or periodic health result and are never updated or
// deleted.
package compliance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity levels for compliance entries.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// EventType classifies compliance entries.
type EventType string

const (
	EventSnapshotFix       EventType = "SNAPSHOT_FIX"
	EventSnapshotCrash     EventType = "SNAPSHOT_CRASH"
	EventReconciliationRun EventType = "RECONCILIATION_RUN"
	EventInventoryHealth   EventType = "INVENTORY_HEALTH"
	EventDailyReportGen    EventType = "DAILY_REPORT_GEN"
)

// Entry is an append-only audit row.
type Entry struct {
	ID        string
	Timestamp time.Time
	EventType EventType
	Severity  Severity
	Component string
	Details   map[string]any
	UserID    string
}

// NewEntry stamps a fresh entry with a uuid and the current time.
func NewEntry(event EventType, severity Severity, component string, details map[string]any, userID string) Entry {
	return Entry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: event,
		Severity:  severity,
		Component: component,
		Details:   details,
		UserID:    userID,
	}
}

// Recorder appends compliance entries. Implementations must tolerate
// concurrent writers.
type Recorder interface {
	Append(ctx context.Context, entry Entry) error
}

// Store extends Recorder with the queries the daily compliance summary needs.
type Store interface {
	Recorder
	CountSince(ctx context.Context, severity Severity, since time.Time) (int, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}
