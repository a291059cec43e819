package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"reportvault/internal/alert"
	"reportvault/internal/archive"
	"reportvault/internal/compliance"
	"reportvault/internal/inventory"
	"reportvault/internal/platform/config"
	"reportvault/internal/platform/database"
	"reportvault/internal/platform/logger"
	"reportvault/internal/platform/metrics"
	"reportvault/internal/platform/redis"
	"reportvault/internal/reconcile"
	"reportvault/internal/report"
	snapstore "reportvault/internal/snapshot/store"
)

// Cached artifact paths outlive any single request but should not survive
// an archive relocation indefinitely.
const pathCacheTTL = 24 * time.Hour

// app holds the wired dependency graph shared by the subcommands.
type app struct {
	cfg     config.Config
	db      *sql.DB
	redis   *redis.Client
	logger  *slog.Logger
	metrics *metrics.Metrics

	snapshots  snapstore.Store
	parts      inventory.Store
	compliance compliance.Store
	alerter    *alert.Dispatcher

	archiveService *archive.Service
	job            *reconcile.Job
}

func newApp(ctx context.Context, cfg config.Config, component string) (*app, error) {
	log := logger.New(component)

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		// The path cache is an optimization; run without it.
		log.Warn("redis unavailable, artifact path cache disabled", "error", err)
	}
	cleanup := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = db.Close()
	}

	m := metrics.New()
	alerter := alert.NewDispatcher(alert.NewSMTPSender(cfg.SMTP), alert.WithLogger(log))
	complianceStore := compliance.NewSQLStore(db)

	storeOpts := []archive.StoreOption{
		archive.WithLogger(log),
		archive.WithMetrics(m),
	}
	if rdb != nil {
		storeOpts = append(storeOpts, archive.WithPathCache(
			archive.NewRedisPathCache(rdb.Client, pathCacheTTL, log)))
	}
	archiveStore, err := archive.NewStore(cfg.ArchiveRoot, storeOpts...)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open archive store: %w", err)
	}

	records := archive.NewSQLRecordStore(db)
	archiveService, err := archive.NewService(archiveStore, records, cfg.CorruptionFloorBytes,
		archive.ServiceWithLogger(log), archive.ServiceWithMetrics(m))
	if err != nil {
		cleanup()
		return nil, err
	}

	snapshots := snapstore.NewSQL(db)
	job, err := reconcile.NewJob(snapshots, complianceStore,
		reconcile.WithGenerators(report.NamedGenerator{Name: "csv", Generate: report.CSV}),
		reconcile.WithAlerter(alerter),
		reconcile.WithLogger(log),
		reconcile.WithMetrics(m))
	if err != nil {
		cleanup()
		return nil, err
	}

	return &app{
		cfg:            cfg,
		db:             db,
		redis:          rdb,
		logger:         log,
		metrics:        m,
		snapshots:      snapshots,
		parts:          inventory.NewSQLStore(db),
		compliance:     complianceStore,
		alerter:        alerter,
		archiveService: archiveService,
		job:            job,
	}, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.db.Close()
}
