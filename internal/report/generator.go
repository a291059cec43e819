// Package report defines the generator collaborator contract. Rendering
// engines (PDF, Excel) live outside this subsystem; the CSV generator here is
// the one renderer small enough to own, and it doubles as the real generator
// exercised by reconciliation dry runs in tests.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"

	"reportvault/internal/snapshot"
)

// Generator renders a canonical snapshot into artifact bytes, or fails.
// Schema validity does not imply renderability; generators may reject
// content that validates.
type Generator func(doc map[string]any) ([]byte, error)

// NamedGenerator pairs a generator with the format it produces, for dry-run
// reporting.
type NamedGenerator struct {
	Name     string
	Generate Generator
}

// CSV renders the snapshot's flat items as CSV. Columns are the sorted union
// of item keys so every row serializes completely.
func CSV(doc map[string]any) ([]byte, error) {
	rawItems, ok := doc[snapshot.KeyItems].([]any)
	if !ok {
		return nil, fmt.Errorf("snapshot has no items list")
	}

	columns := map[string]struct{}{}
	rows := make([]map[string]any, 0, len(rawItems))
	for i, raw := range rawItems {
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is not an object", i)
		}
		rows = append(rows, item)
		for k := range item {
			columns[k] = struct{}{}
		}
	}

	header := make([]string, 0, len(columns))
	for k := range columns {
		header = append(header, k)
	}
	sort.Strings(header)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}
	for _, row := range rows {
		record := make([]string, len(header))
		for i, col := range header {
			if v, ok := row[col]; ok && v != nil {
				record[i] = fmt.Sprintf("%v", v)
			}
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
