// Command worker runs the background side of estatecrm: the outbox relay, the
// scheduled expiration sweep, expiry reminders and the notification consumer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/app"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/workers"
	"github.com/felixgeelhaar/estatecrm/pkg/config"
	"github.com/felixgeelhaar/estatecrm/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	logger = observability.NewLogger(observability.ConfigForEnv(cfg.AppEnv, cfg.LogLevel))

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewPrometheusMetrics(registry)

	container, err := app.NewContainer(ctx, cfg, logger, app.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer container.Close()
	logger.Info("worker starting", "driver", container.DBDriver, "local_mode", cfg.LocalMode)

	if cfg.OutboxRelayEnabled {
		if err := container.OutboxRelay.Start(ctx); err != nil {
			return err
		}
	} else {
		logger.Info("outbox relay disabled")
	}

	scheduler, err := newScheduler(cfg, container, logger, metrics)
	if err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	consumerErr := make(chan error, 1)
	if err := startConsumer(ctx, cfg, container, logger, consumerErr); err != nil {
		return err
	}

	go every(ctx, cfg.OutboxCleanupInterval, func() { cleanupOutbox(ctx, cfg, container, logger) })
	go every(ctx, cfg.OutboxStatsInterval, func() { logOutboxStats(ctx, container, metrics, logger) })

	if cfg.WorkerHealthAddr != "" {
		srv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           healthMux(container, registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("health server listening", "addr", cfg.WorkerHealthAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down worker")
		return nil
	case err := <-consumerErr:
		return err
	}
}

// newScheduler registers the sweeper and the reminder job.
func newScheduler(cfg *config.Config, c *app.Container, logger *slog.Logger, metrics observability.Metrics) (*workers.Scheduler, error) {
	scheduler := workers.NewScheduler(cfg.Location(), logger)

	err := scheduler.Add(cfg.SweeperSchedule, "sweeper", func(ctx context.Context, now time.Time) error {
		report, err := observability.TimeOperationResult(ctx, logger, metrics, "sweep",
			func(ctx context.Context) (workers.SweepReport, error) { return c.Sweeper.Sweep(ctx, now) })
		logger.InfoContext(ctx, "sweep finished",
			"scanned", report.Scanned,
			"expired", report.Expired,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = scheduler.Add(cfg.NotifierSchedule, "notifier", func(ctx context.Context, now time.Time) error {
		report, err := observability.TimeOperationResult(ctx, logger, metrics, "notify",
			func(ctx context.Context) (workers.NotifyReport, error) { return c.ExpiryNotifier.Notify(ctx, now) })
		if report.Reminded > 0 || report.Failed > 0 {
			logger.InfoContext(ctx, "expiry reminders sent",
				"scanned", report.Scanned,
				"reminded", report.Reminded,
				"failed", report.Failed,
			)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}

// startConsumer delivers broker events to the notification subscriber. In
// local mode the in-process bus already does that, so nothing is started.
func startConsumer(ctx context.Context, cfg *config.Config, c *app.Container, logger *slog.Logger, errCh chan<- error) error {
	if cfg.RabbitMQURL == "" || cfg.LocalMode {
		return nil
	}

	router := eventbus.NewRouter(logger)
	router.Register(c.Notifications)
	consumer, err := eventbus.NewAMQPConsumer(eventbus.AMQPConsumerConfig{
		URL:    cfg.RabbitMQURL,
		Logger: logger,
	}, router)
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("RabbitMQ consumer not available", "error", err)
			return nil
		}
		return err
	}

	go func() {
		defer consumer.Close()
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	return nil
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func cleanupOutbox(ctx context.Context, cfg *config.Config, c *app.Container, logger *slog.Logger) {
	cutoff := time.Now().AddDate(0, 0, -cfg.OutboxRetentionDays)
	deleted, err := c.Outbox.Purge(ctx, cutoff)
	if err != nil {
		logger.ErrorContext(ctx, "outbox cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		logger.InfoContext(ctx, "outbox cleanup completed", "deleted", deleted, "published_before", cutoff)
	}
}

func logOutboxStats(ctx context.Context, c *app.Container, metrics observability.Metrics, logger *slog.Logger) {
	backlog, err := c.Outbox.Backlog(ctx)
	if err != nil {
		logger.WarnContext(ctx, "outbox backlog unavailable", "error", err)
		return
	}
	metrics.Gauge(observability.MetricOutboxPending, float64(backlog.Pending))
	metrics.Gauge(observability.MetricOutboxBacklogDead, float64(backlog.Dead))

	stats := c.OutboxRelay.Stats()
	logger.InfoContext(ctx, "outbox stats",
		"running", stats.Running,
		"pending", backlog.Pending,
		"dead", backlog.Dead,
		"oldest_pending_at", backlog.Oldest,
		"published", stats.Published,
		"retried", stats.Retried,
		"lag", stats.Lag,
		"breaker", c.Breaker.State(),
	)
}

// healthMux serves liveness (outbox relay state), readiness (dependency
// checks) and the Prometheus registry.
func healthMux(c *app.Container, registry *prometheus.Registry) *http.ServeMux {
	health := c.HealthRegistry()
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		stats := c.OutboxRelay.Stats()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"running":      stats.Running,
			"published":    stats.Published,
			"retried":      stats.Retried,
			"dead":         stats.Dead,
			"lag_seconds":  stats.Lag.Seconds(),
			"breaker":      c.Breaker.State(),
			"last_pass_at": stats.LastPassAt,
			"last_error":   stats.LastError,
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		report := health.Report(r.Context())
		status := http.StatusOK
		if report.Status == observability.HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
