package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportvault/internal/alert"
	"reportvault/internal/compliance"
	"reportvault/internal/snapshot"
	"reportvault/internal/snapshot/store"
	"reportvault/pkg/platform/sentinel"
)

var testNow = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

type capturedAlert struct {
	subject  string
	severity compliance.Severity
}

type fakeAlerter struct {
	alerts []capturedAlert
}

func (a *fakeAlerter) Emit(_ context.Context, subject, _ string, severity compliance.Severity, _ map[string]string) alert.Result {
	a.alerts = append(a.alerts, capturedAlert{subject: subject, severity: severity})
	return alert.Result{Delivered: true, Message: "captured"}
}

func newTestService(t *testing.T) (*Service, *store.InMemoryStore, *compliance.InMemoryStore, *fakeAlerter) {
	t.Helper()
	st := store.NewInMemoryStore()
	log := compliance.NewInMemoryStore()
	alerter := &fakeAlerter{}
	svc, err := New(st, log,
		WithAlerter(alerter),
		WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return svc, st, log, alerter
}

func putSnapshot(t *testing.T, st *store.InMemoryStore, id string, content string) {
	t.Helper()
	require.NoError(t, st.Put(context.Background(), &store.Record{
		ID:        id,
		Content:   json.RawMessage(content),
		CreatedBy: "SYSTEM",
		CreatedAt: testNow,
	}))
}

func TestService_Load_ValidContentUntouched(t *testing.T) {
	ctx := context.Background()
	svc, st, log, _ := newTestService(t)

	content := `{"reportId":"RPT-20260115-AAAAAA","generatedAt":"2026-01-15T10:30:00Z",` +
		`"items":[{"status":"SERVICEABLE"}],"viewModel":{},"filtersApplied":{},"summary":{"total":1}}`
	putSnapshot(t, st, "RPT-20260115-AAAAAA", content)

	doc, err := svc.Load(ctx, "RPT-20260115-AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, "RPT-20260115-AAAAAA", doc[snapshot.KeyReportID])

	rec, err := st.Get(ctx, "RPT-20260115-AAAAAA")
	require.NoError(t, err)
	assert.JSONEq(t, content, string(rec.Content), "valid content must not be rewritten")
	assert.Empty(t, log.Entries(), "no compliance entry for a clean load")
}

func TestService_Load_RepairsLegacyContent(t *testing.T) {
	ctx := context.Background()
	svc, st, log, alerter := newTestService(t)

	putSnapshot(t, st, "RPT-20260110-BBBBBB",
		`{"data":[{"partNumber":"P-100","status":"SERVICEABLE"}]}`)

	doc, err := svc.Load(ctx, "RPT-20260110-BBBBBB")
	require.NoError(t, err)

	items, ok := doc[snapshot.KeyItems].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "RPT-20260110-BBBBBB", doc[snapshot.KeyReportID])

	// The fix is persisted: the stored content now validates.
	rec, err := st.Get(ctx, "RPT-20260110-BBBBBB")
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(rec.Content, &stored))
	valid, errs := snapshot.Validate(stored)
	assert.True(t, valid, "write-back should persist canonical content, got errors %v", errs)

	fixes := log.ByEvent(compliance.EventSnapshotFix)
	require.Len(t, fixes, 1)
	assert.Equal(t, compliance.SeverityInfo, fixes[0].Severity)
	assert.Equal(t, "SnapshotRepository", fixes[0].Component)
	assert.Empty(t, alerter.alerts)
}

func TestService_Load_RepairWritesBackOnce(t *testing.T) {
	ctx := context.Background()
	svc, st, log, _ := newTestService(t)

	putSnapshot(t, st, "RPT-20260110-CCCCCC",
		`{"data":{"items":[{"partNumber":"P-200"}]}}`)

	_, err := svc.Load(ctx, "RPT-20260110-CCCCCC")
	require.NoError(t, err)
	_, err = svc.Load(ctx, "RPT-20260110-CCCCCC")
	require.NoError(t, err)

	assert.Len(t, log.ByEvent(compliance.EventSnapshotFix), 1,
		"second load of repaired content must not write back again")
}

func TestService_Load_IrreparableContent(t *testing.T) {
	ctx := context.Background()

	t.Run("non-object content", func(t *testing.T) {
		svc, st, _, alerter := newTestService(t)
		putSnapshot(t, st, "RPT-20260110-DDDDDD", `[1,2,3]`)

		_, err := svc.Load(ctx, "RPT-20260110-DDDDDD")
		require.ErrorIs(t, err, sentinel.ErrUnusable)

		require.Len(t, alerter.alerts, 1)
		assert.Equal(t, compliance.SeverityCritical, alerter.alerts[0].severity)
		assert.Contains(t, alerter.alerts[0].subject, "RPT-20260110-DDDDDD")
	})

	t.Run("wrong-typed canonical keys survive normalization and still fail", func(t *testing.T) {
		svc, st, _, alerter := newTestService(t)
		putSnapshot(t, st, "RPT-20260110-EEEEEE",
			`{"reportId":"RPT-20260110-EEEEEE","generatedAt":"x","items":"not-a-list","viewModel":{}}`)

		_, err := svc.Load(ctx, "RPT-20260110-EEEEEE")
		require.ErrorIs(t, err, sentinel.ErrUnusable)
		require.Len(t, alerter.alerts, 1)
	})
}

func TestService_Load_MissingSnapshot(t *testing.T) {
	svc, _, _, alerter := newTestService(t)

	_, err := svc.Load(context.Background(), "RPT-00000000-000000")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.Empty(t, alerter.alerts, "a missing snapshot is not an integrity event")
}

// failingUpdateStore wraps the in-memory store to reject write-backs.
type failingUpdateStore struct {
	*store.InMemoryStore
}

func (s *failingUpdateStore) UpdateContent(context.Context, string, json.RawMessage) error {
	return assert.AnError
}

func TestService_Load_WriteBackFailureStillReturnsRepair(t *testing.T) {
	ctx := context.Background()
	inner := store.NewInMemoryStore()
	svc, err := New(&failingUpdateStore{inner},
		compliance.NewInMemoryStore(),
		WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	putSnapshot(t, inner, "RPT-20260110-FFFFFF", `{"data":[{"p":1}]}`)

	doc, err := svc.Load(ctx, "RPT-20260110-FFFFFF")
	require.NoError(t, err, "repaired content is served even when persistence fails")
	items, ok := doc[snapshot.KeyItems].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)
}
