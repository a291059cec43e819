package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the archival subsystem.
type Metrics struct {
	SnapshotsAudited   prometheus.Counter
	SnapshotsRepaired  prometheus.Counter
	SnapshotsFailed    prometheus.Counter
	GeneratorCrashes   prometheus.Counter
	ArtifactsPersisted prometheus.Counter
	CorruptArtifacts   prometheus.Counter
	SentinelCycles     prometheus.Counter
	SentinelFailures   prometheus.Counter
}

// New registers all metrics on the default registry.
func New() *Metrics {
	return NewFor(prometheus.DefaultRegisterer)
}

// NewFor registers all metrics on reg. Tests pass a fresh registry so
// repeated construction does not collide.
func NewFor(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SnapshotsAudited: factory.NewCounter(prometheus.CounterOpts{
			Name: "reportvault_snapshots_audited_total",
			Help: "Total number of snapshots examined by reconciliation runs",
		}),
		SnapshotsRepaired: factory.NewCounter(prometheus.CounterOpts{
			Name: "reportvault_snapshots_repaired_total",
			Help: "Total number of snapshots repaired by normalization",
		}),
		SnapshotsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "reportvault_snapshots_failed_total",
			Help: "Total number of snapshots that could not be repaired",
		}),
		GeneratorCrashes: factory.NewCounter(prometheus.CounterOpts{
			Name: "reportvault_generator_crashes_total",
			Help: "Total number of dry-run generator crashes on schema-valid snapshots",
		}),
		ArtifactsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "reportvault_artifacts_persisted_total",
			Help: "Total number of artifacts written to the archive root",
		}),
		CorruptArtifacts: factory.NewCounter(prometheus.CounterOpts{
			Name: "reportvault_corrupt_artifacts_total",
			Help: "Total number of artifacts deleted at serve time for being below the size floor",
		}),
		SentinelCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "reportvault_sentinel_cycles_total",
			Help: "Total number of completed sentinel cycles",
		}),
		SentinelFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "reportvault_sentinel_cycle_failures_total",
			Help: "Total number of sentinel cycles that ended in a caught error",
		}),
	}
}
