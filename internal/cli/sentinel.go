package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"reportvault/internal/inventory"
	"reportvault/internal/monitor"
	"reportvault/internal/platform/config"
)

// NewSentinelCommand builds the integrity monitor command. Without --once it
// loops until SIGINT/SIGTERM, serving /healthz and /metrics alongside.
func NewSentinelCommand() *cobra.Command {
	var once bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Run the continuous integrity monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if interval > 0 {
				cfg.SentinelInterval = interval
			}
			return runSentinel(cmd.Context(), cfg, once)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit (for cron)")
	cmd.Flags().DurationVar(&interval, "interval", 0,
		"time between cycles (defaults to REPORTVAULT_SENTINEL_INTERVAL)")
	return cmd
}

func runSentinel(ctx context.Context, cfg config.Config, once bool) error {
	a, err := newApp(ctx, cfg, "sentinel")
	if err != nil {
		return err
	}
	defer a.close()

	daily := monitor.NewDailyReporter(a.snapshots, a.parts, a.compliance, a.archiveService, a.logger)
	m, err := monitor.New(
		inventory.NewChecker(a.parts, a.compliance, a.logger),
		a.job, daily, cfg.SentinelInterval,
		monitor.WithAlerter(a.alerter),
		monitor.WithLogger(a.logger),
		monitor.WithMetrics(a.metrics))
	if err != nil {
		return err
	}

	if once {
		return m.RunOnce(ctx)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           opsRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func opsRouter(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := a.db.PingContext(req.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		// The path cache is optional, so a redis outage degrades the
		// response body without failing the check.
		if a.redis != nil {
			if err := a.redis.Health(req.Context()); err != nil {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok (path cache unavailable)"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
