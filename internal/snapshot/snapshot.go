// Package snapshot defines the canonical report snapshot shape and the pure
// validation and normalization functions that keep legacy content from
// reaching the report generators.
//
// The canonical schema is {reportId, generatedAt, items, viewModel} plus the
// optional filtersApplied and summary objects. Snapshots are created once at
// generation time; the only permitted mutation is the in-place content
// replacement performed by the repair path.
package snapshot

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Canonical document keys.
const (
	KeyReportID       = "reportId"
	KeyGeneratedAt    = "generatedAt"
	KeyItems          = "items"
	KeyViewModel      = "viewModel"
	KeyFiltersApplied = "filtersApplied"
	KeySummary        = "summary"
)

// Tag colors recognized by the inventory summary.
var tagColors = []string{"YELLOW", "GREEN", "WHITE", "RED"}

// NewReportID builds a report identifier of the form RPT-YYYYMMDD-XXXXXX.
// The random suffix keeps concurrent writers from colliding on a path.
func NewReportID(now time.Time) string {
	u := uuid.New()
	suffix := strings.ToUpper(hex.EncodeToString(u[:3]))
	return fmt.Sprintf("RPT-%s-%s", now.UTC().Format("20060102"), suffix)
}

// Build constructs a canonical snapshot document from flat inventory rows.
// The summary counts rows by tag color so consumers never re-aggregate.
func Build(items []map[string]any, filters map[string]any, createdBy, reportType string, now time.Time) map[string]any {
	if items == nil {
		items = []map[string]any{}
	}
	if filters == nil {
		filters = map[string]any{}
	}

	byStatus := map[string]any{}
	for _, color := range tagColors {
		byStatus[color] = 0
	}
	for _, item := range items {
		color, _ := item["tagColor"].(string)
		if n, ok := byStatus[color].(int); ok {
			byStatus[color] = n + 1
		}
	}

	generatedAt := now.UTC().Format(time.RFC3339)

	anyItems := make([]any, len(items))
	for i, item := range items {
		anyItems[i] = item
	}

	return map[string]any{
		KeyReportID:       NewReportID(now),
		"reportType":      reportType,
		KeyGeneratedAt:    generatedAt,
		"createdBy":       createdBy,
		KeyFiltersApplied: filters,
		KeyItems:          anyItems,
		KeyViewModel:      map[string]any{},
		KeySummary: map[string]any{
			"total":    len(items),
			"byStatus": byStatus,
		},
		"rowCount": len(items),
	}
}
