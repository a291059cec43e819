package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

func normalizeJSON(t *testing.T, raw string) map[string]any {
	t.Helper()
	doc, err := Normalize([]byte(raw), "", testNow)
	require.NoError(t, err)
	return doc
}

func TestNormalize_DirectDataList(t *testing.T) {
	doc := normalizeJSON(t, `{"reportId":"RPT-X","data":[{"pn":"123"}]}`)

	assert.Equal(t, "RPT-X", doc[KeyReportID])
	assert.Equal(t, "2026-01-15T10:30:00Z", doc[KeyGeneratedAt])
	assert.Equal(t, []any{map[string]any{"pn": "123"}}, doc[KeyItems])
	assert.Equal(t, map[string]any{}, doc[KeyViewModel])
	assert.Equal(t, map[string]any{}, doc[KeyFiltersApplied])
	assert.Equal(t, map[string]any{}, doc[KeySummary])

	ok, errs := Validate(doc)
	assert.True(t, ok, "repaired document should validate: %v", errs)
}

func TestNormalize_NestedDataItems(t *testing.T) {
	doc := normalizeJSON(t, `{"data":{"items":[{"pn":"9"}],"meta":"x"}}`)

	assert.Equal(t, []any{map[string]any{"pn": "9"}}, doc[KeyItems])
	ok, _ := Validate(doc)
	assert.True(t, ok)
}

func TestNormalize_GroupedDataPreservesKeyOrder(t *testing.T) {
	doc := normalizeJSON(t, `{"groupedData":{"YELLOW":[{"pn":"1"}],"RED":{"items":[{"pn":"2"}]}}}`)

	assert.Equal(t, []any{
		map[string]any{"pn": "1"},
		map[string]any{"pn": "2"},
	}, doc[KeyItems], "items must follow groupedData document key order")

	assert.Equal(t, map[string]any{
		"YELLOW": []any{map[string]any{"pn": "1"}},
		"RED":    map[string]any{"items": []any{map[string]any{"pn": "2"}}},
	}, doc[KeyViewModel], "groupedData must be promoted to viewModel")

	ok, _ := Validate(doc)
	assert.True(t, ok)
}

func TestNormalize_GroupedOrderNotAlphabetical(t *testing.T) {
	// ZULU precedes ALPHA in the document; recovery must not sort keys.
	doc := normalizeJSON(t, `{"groupedData":{"ZULU":[{"pn":"z"}],"ALPHA":[{"pn":"a"}]}}`)

	assert.Equal(t, []any{
		map[string]any{"pn": "z"},
		map[string]any{"pn": "a"},
	}, doc[KeyItems])
}

func TestNormalize_EmptyReportStillValidates(t *testing.T) {
	doc := normalizeJSON(t, `{}`)

	assert.Equal(t, []any{}, doc[KeyItems])
	assert.NotEmpty(t, doc[KeyReportID])
	assert.NotEmpty(t, doc[KeyGeneratedAt])

	ok, errs := Validate(doc)
	assert.True(t, ok, "empty report should validate after normalize: %v", errs)
}

func TestNormalize_UnrecognizedShapeYieldsEmptyItems(t *testing.T) {
	doc := normalizeJSON(t, `{"data":"not a list","groupedData":"not an object"}`)

	assert.Equal(t, []any{}, doc[KeyItems])
}

func TestNormalize_GroupedDataWrongTypeIsIrreparable(t *testing.T) {
	// A groupedData list still lands in viewModel. That leaves the wrong type
	// in place for validation to reject instead of hiding it behind {}.
	doc := normalizeJSON(t, `{"groupedData":[1,2]}`)

	assert.Equal(t, []any{float64(1), float64(2)}, doc[KeyViewModel])
	assert.Equal(t, []any{}, doc[KeyItems])

	ok, errs := Validate(doc)
	assert.False(t, ok, "wrong-typed viewModel must fail validation")
	assert.NotEmpty(t, errs)
}

func TestNormalize_FallbackID(t *testing.T) {
	doc, err := Normalize([]byte(`{}`), "RPT-FALLBACK", testNow)
	require.NoError(t, err)
	assert.Equal(t, "RPT-FALLBACK", doc[KeyReportID])
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		`{"reportId":"RPT-X","data":[{"pn":"123"}]}`,
		`{"groupedData":{"YELLOW":[{"pn":"1"}],"RED":{"items":[{"pn":"2"}]}}}`,
		`{}`,
		`{"reportId":"RPT-OK","generatedAt":"2026-01-01T00:00:00Z","items":[{"pn":"1"}],"viewModel":{"g":1},"filtersApplied":{"loc":"A"},"summary":{"total":1}}`,
		`{"data":{"items":[{"pn":"9"}]}}`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			once, err := Normalize([]byte(input), "", testNow)
			require.NoError(t, err)

			twice, err := NormalizeDoc(once, "", testNow)
			require.NoError(t, err)

			assert.Equal(t, once, twice, "normalize(normalize(x)) must equal normalize(x)")
		})
	}
}

func TestNormalize_AlreadyCanonicalUnchanged(t *testing.T) {
	raw := `{"reportId":"RPT-OK","generatedAt":"2026-01-01T00:00:00Z","items":[{"pn":"1"}],"viewModel":{},"filtersApplied":{},"summary":{}}`

	var original map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &original))

	doc := normalizeJSON(t, raw)
	assert.Equal(t, original, doc)
}

func TestNormalize_RejectsNonObject(t *testing.T) {
	_, err := Normalize([]byte(`[1,2,3]`), "", testNow)
	assert.Error(t, err)
}

func TestClassifyLegacy(t *testing.T) {
	cases := []struct {
		name string
		doc  map[string]any
		want LegacyShape
	}{
		{"direct list", map[string]any{"data": []any{}}, ShapeDirectItems},
		{"nested items", map[string]any{"data": map[string]any{"items": []any{}}}, ShapeNestedDataItems},
		{"grouped", map[string]any{"groupedData": map[string]any{}}, ShapeGrouped},
		{"data object without items", map[string]any{"data": map[string]any{"x": 1}}, ShapeEmpty},
		{"nothing", map[string]any{}, ShapeEmpty},
		{"data wrong type", map[string]any{"data": "zzz"}, ShapeEmpty},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyLegacy(tc.doc))
		})
	}
}
