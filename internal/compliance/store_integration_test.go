//go:build integration

package compliance_test

import (
	"context"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportvault/internal/compliance"
	"reportvault/internal/platform/database"
	"reportvault/pkg/testutil/containers"
)

func TestSQLStore_Postgres(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)
	require.NoError(t, database.Migrate(ctx, pg.DB))

	st := compliance.NewSQLStore(pg.DB)

	require.NoError(t, st.Append(ctx, compliance.NewEntry(
		compliance.EventSnapshotFix, compliance.SeverityInfo, "Reconciler",
		map[string]any{"report_id": "RPT-20260115-AAAAAA"}, "SYSTEM_RECONCILER")))
	require.NoError(t, st.Append(ctx, compliance.NewEntry(
		compliance.EventSnapshotCrash, compliance.SeverityCritical, "Reconciler",
		map[string]any{"report_id": "RPT-20260115-BBBBBB"}, "SYSTEM_RECONCILER")))

	t.Run("count since by severity", func(t *testing.T) {
		since := time.Now().UTC().Add(-time.Hour)

		criticals, err := st.CountSince(ctx, compliance.SeverityCritical, since)
		require.NoError(t, err)
		assert.Equal(t, 1, criticals)

		infos, err := st.CountSince(ctx, compliance.SeverityInfo, since)
		require.NoError(t, err)
		assert.Equal(t, 1, infos)
	})

	t.Run("list recent preserves details", func(t *testing.T) {
		entries, err := st.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		found := false
		for _, e := range entries {
			if e.EventType == compliance.EventSnapshotCrash {
				found = true
				assert.Equal(t, "RPT-20260115-BBBBBB", e.Details["report_id"])
			}
		}
		assert.True(t, found)
	})
}
