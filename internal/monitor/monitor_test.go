package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportvault/internal/alert"
	"reportvault/internal/archive"
	"reportvault/internal/compliance"
	"reportvault/internal/inventory"
	"reportvault/internal/reconcile"
	"reportvault/internal/snapshot/store"
)

var testNow = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

type archivedArtifact struct {
	filename string
	category string
	content  []byte
}

type fakeArtifactStore struct {
	artifacts []archivedArtifact
}

func (s *fakeArtifactStore) PersistBestEffort(_ context.Context, content []byte, filename, _, category string, _ archive.DeliveryMethod) string {
	s.artifacts = append(s.artifacts, archivedArtifact{filename: filename, category: category, content: content})
	return "/archive/" + filename
}

type fixture struct {
	snapshots *store.InMemoryStore
	parts     *inventory.InMemoryStore
	log       *compliance.InMemoryStore
	artifacts *fakeArtifactStore
	monitor   *Monitor
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		snapshots: store.NewInMemoryStore(),
		parts:     inventory.NewInMemoryStore(),
		log:       compliance.NewInMemoryStore(),
		artifacts: &fakeArtifactStore{},
	}

	job, err := reconcile.NewJob(f.snapshots, f.log,
		reconcile.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	daily := NewDailyReporter(f.snapshots, f.parts, f.log, f.artifacts, nil).
		WithClock(func() time.Time { return testNow })

	f.monitor, err = New(
		inventory.NewChecker(f.parts, f.log, nil),
		job, daily, time.Hour, opts...)
	require.NoError(t, err)
	return f
}

func TestMonitor_RunOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.parts.Put(ctx, &inventory.Part{ID: "p1", PartName: "Actuator"}))
	require.NoError(t, f.parts.Put(ctx, &inventory.Part{ID: "p2"}))
	require.NoError(t, f.snapshots.Put(ctx, &store.Record{
		ID:        "RPT-20260110-BBBBBB",
		Content:   json.RawMessage(`{"data":[{"partNumber":"P-2"}]}`),
		CreatedBy: "SYSTEM",
		CreatedAt: testNow.Add(-2 * time.Hour),
	}))

	require.NoError(t, f.monitor.RunOnce(ctx))

	assert.Len(t, f.log.ByEvent(compliance.EventInventoryHealth), 1, "unnamed part flagged")
	assert.Len(t, f.log.ByEvent(compliance.EventSnapshotFix), 1, "legacy snapshot repaired")
	assert.Len(t, f.log.ByEvent(compliance.EventReconciliationRun), 1)

	generated := f.log.ByEvent(compliance.EventDailyReportGen)
	require.Len(t, generated, 1)

	require.Len(t, f.artifacts.artifacts, 1)
	artifact := f.artifacts.artifacts[0]
	assert.Equal(t, "daily_compliance_20260115", artifact.filename)
	assert.Equal(t, "DAILY_COMPLIANCE", artifact.category)
	assert.Contains(t, string(artifact.content), "Overall Status: WARNINGS DETECTED",
		"the inventory warning from this cycle shows up in the summary")
}

func TestMonitor_RunOnce_CleanCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.parts.Put(ctx, &inventory.Part{ID: "p1", PartName: "Actuator"}))

	require.NoError(t, f.monitor.RunOnce(ctx))

	require.Len(t, f.artifacts.artifacts, 1)
	assert.Contains(t, string(f.artifacts.artifacts[0].content), "Overall Status: SYSTEM STABLE")
}

type failingChecker struct{}

func (failingChecker) Check(context.Context) (inventory.HealthReport, error) {
	return inventory.HealthReport{}, errors.New("inventory table unreachable")
}

type monitorAlerter struct {
	alerts []string
}

func (a *monitorAlerter) Emit(_ context.Context, subject, _ string, _ compliance.Severity, _ map[string]string) alert.Result {
	a.alerts = append(a.alerts, subject)
	return alert.Result{Delivered: true}
}

func TestMonitor_RunOnce_PropagatesCycleError(t *testing.T) {
	f := newFixture(t)
	job, err := reconcile.NewJob(f.snapshots, f.log)
	require.NoError(t, err)
	daily := NewDailyReporter(f.snapshots, f.parts, f.log, f.artifacts, nil)

	m, err := New(failingChecker{}, job, daily, time.Hour)
	require.NoError(t, err)

	err = m.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "inventory health check")
}

func TestMonitor_Run_SurvivesFailingCycles(t *testing.T) {
	f := newFixture(t)
	job, err := reconcile.NewJob(f.snapshots, f.log)
	require.NoError(t, err)
	daily := NewDailyReporter(f.snapshots, f.parts, f.log, f.artifacts, nil)
	alerter := &monitorAlerter{}

	m, err := New(failingChecker{}, job, daily, time.Millisecond, WithAlerter(alerter))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = m.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "the loop only exits on cancellation")
	assert.GreaterOrEqual(t, len(alerter.alerts), 1, "each failed cycle alerts")
}

func TestMonitor_Run_StopsOnCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.monitor.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}

func TestDailySummary_Status(t *testing.T) {
	assert.Equal(t, StatusStable, DailySummary{}.Status())
	assert.Equal(t, StatusWarning, DailySummary{Warnings: 2}.Status())
	assert.Equal(t, StatusCritical, DailySummary{Warnings: 2, Criticals: 1}.Status())
}

func TestDailyReporter_CountsLast24h(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	put := func(id string, createdAt time.Time) {
		require.NoError(t, f.snapshots.Put(ctx, &store.Record{
			ID:        id,
			Content:   json.RawMessage(`{}`),
			CreatedAt: createdAt,
		}))
	}
	put("RPT-20260115-AAAAAA", testNow.Add(-time.Hour))
	put("RPT-20260112-BBBBBB", testNow.Add(-72*time.Hour))

	reporter := NewDailyReporter(f.snapshots, f.parts, f.log, f.artifacts, nil).
		WithClock(func() time.Time { return testNow })

	summary, err := reporter.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalSnapshots)
	assert.Equal(t, 1, summary.NewSnapshots, "only the snapshot inside the window counts")
}
