// Command estatecrm is the administrator CLI for real-estate CRM subscriptions.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/estatecrm/adapter/cli"
	"github.com/felixgeelhaar/estatecrm/adapter/cli/subscription"
	"github.com/felixgeelhaar/estatecrm/internal/app"
	"github.com/felixgeelhaar/estatecrm/pkg/config"
	"github.com/felixgeelhaar/estatecrm/pkg/observability"
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
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	switch {
	case err == nil:
		defer container.Close()
		// Events written by a command are relayed while it runs; the worker
		// picks up whatever is left.
		if cfg.OutboxRelayEnabled {
			if err := container.OutboxRelay.Start(ctx); err != nil {
				logger.Warn("outbox relay not started", "error", err)
			}
		}
		cli.SetApp(cli.NewApp(container))
	case cfg.IsDevelopment():
		// version and help still work without a database
		logger.Warn("running without a database", "error", err)
	default:
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}

	cli.AddCommand(subscription.Cmd)
	os.Exit(cli.Execute(ctx))
}
