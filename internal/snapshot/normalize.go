package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// LegacyShape enumerates the recoverable legacy snapshot layouts. Keeping the
// set closed makes the repair surface enumerable and independently testable.
type LegacyShape int

const (
	// ShapeEmpty matches nothing recoverable; items stays empty.
	ShapeEmpty LegacyShape = iota
	// ShapeDirectItems is {"data": [...]}.
	ShapeDirectItems
	// ShapeNestedDataItems is {"data": {"items": [...]}}.
	ShapeNestedDataItems
	// ShapeGrouped is {"groupedData": {...}} where each group is either a
	// list or an object carrying an "items" list.
	ShapeGrouped
)

// ClassifyLegacy maps a document to the legacy shape its items can be
// recovered from. Exhaustive over the shapes the fleet has ever produced.
func ClassifyLegacy(doc map[string]any) LegacyShape {
	switch data := doc["data"].(type) {
	case []any:
		return ShapeDirectItems
	case map[string]any:
		if _, ok := data[KeyItems].([]any); ok {
			return ShapeNestedDataItems
		}
	}
	if _, ok := doc["groupedData"].(map[string]any); ok {
		return ShapeGrouped
	}
	return ShapeEmpty
}

// Normalize rebuilds raw snapshot content into the canonical shape. It is
// pure and idempotent: normalizing already-canonical content returns equal
// content, and a racing double-repair converges on the same document.
//
// The raw bytes are required (not just the decoded map) because grouped
// legacy recovery concatenates group lists in document key order, which a
// map[string]any cannot preserve.
func Normalize(raw []byte, fallbackID string, now time.Time) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot content: %w", err)
	}

	normalized := map[string]any{
		KeyReportID:       stringOr(doc[KeyReportID], defaultReportID(fallbackID, now)),
		KeyGeneratedAt:    stringOr(doc[KeyGeneratedAt], now.UTC().Format(time.RFC3339)),
		KeyItems:          listOr(doc[KeyItems]),
		KeyViewModel:      objectOr(doc[KeyViewModel]),
		KeyFiltersApplied: objectOr(doc[KeyFiltersApplied]),
		KeySummary:        objectOr(doc[KeySummary]),
	}

	if items, ok := normalized[KeyItems].([]any); ok && len(items) == 0 {
		recovered, err := recoverItems(doc, raw)
		if err != nil {
			return nil, err
		}
		normalized[KeyItems] = recovered
	}

	// groupedData is promoted wholesale, whatever its type. A grouped value
	// that is not an object then fails validation rather than being masked by
	// an empty viewModel.
	if vm, ok := normalized[KeyViewModel].(map[string]any); ok && len(vm) == 0 {
		if grouped, present := doc["groupedData"]; present && !isEmptyValue(grouped) && grouped != nil {
			normalized[KeyViewModel] = grouped
		}
	}

	return normalized, nil
}

// NormalizeDoc normalizes an already-decoded document. Grouped recovery falls
// back to the re-encoded form, so callers holding the raw bytes should prefer
// Normalize.
func NormalizeDoc(doc map[string]any, fallbackID string, now time.Time) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot content: %w", err)
	}
	return Normalize(raw, fallbackID, now)
}

func recoverItems(doc map[string]any, raw []byte) ([]any, error) {
	switch ClassifyLegacy(doc) {
	case ShapeDirectItems:
		return doc["data"].([]any), nil
	case ShapeNestedDataItems:
		return doc["data"].(map[string]any)[KeyItems].([]any), nil
	case ShapeGrouped:
		return flattenGroups(raw)
	default:
		return []any{}, nil
	}
}

// flattenGroups concatenates every group under groupedData in document key
// order. Groups are lists, or objects with an "items" list; anything else is
// skipped rather than failing the repair.
func flattenGroups(raw []byte) ([]any, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("decode snapshot content: %w", err)
	}
	groupedRaw, ok := top["groupedData"]
	if !ok {
		return []any{}, nil
	}

	entries, err := decodeOrderedObject(groupedRaw)
	if err != nil {
		return nil, fmt.Errorf("decode groupedData: %w", err)
	}

	items := []any{}
	for _, entry := range entries {
		switch group := entry.value.(type) {
		case []any:
			items = append(items, group...)
		case map[string]any:
			if nested, ok := group[KeyItems].([]any); ok {
				items = append(items, nested...)
			}
		}
	}
	return items, nil
}

type orderedEntry struct {
	key   string
	value any
}

// decodeOrderedObject decodes a JSON object preserving key order, which
// encoding/json's map decoding discards.
func decodeOrderedObject(raw json.RawMessage) ([]orderedEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var entries []orderedEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}

		var valueRaw json.RawMessage
		if err := dec.Decode(&valueRaw); err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal(valueRaw, &value); err != nil {
			return nil, err
		}
		entries = append(entries, orderedEntry{key: key, value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}

func defaultReportID(fallbackID string, now time.Time) string {
	if fallbackID != "" {
		return fallbackID
	}
	return "RPT-" + now.UTC().Format("20060102150405")
}

func stringOr(v any, fallback string) any {
	if s, ok := v.(string); ok {
		return s
	}
	if v != nil {
		// Wrong-typed values are kept so validation can flag them instead of
		// silently inventing content.
		return v
	}
	return fallback
}

func listOr(v any) any {
	if list, ok := v.([]any); ok {
		return list
	}
	if v == nil || isEmptyValue(v) {
		return []any{}
	}
	return v
}

func objectOr(v any) any {
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	if v == nil || isEmptyValue(v) {
		return map[string]any{}
	}
	return v
}

// isEmptyValue mirrors the falsy check the legacy repair path applied before
// attempting item recovery.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
