package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spendwise/internal/cli"
	applog "spendwise/internal/log"
	"spendwise/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting spendwise-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	be, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err.Error())
		os.Exit(1)
	}
	if be.Publisher == nil {
		_ = be.Cleanup()
		logger.Error("Failed to connect to AMQP broker", "exchange", cfg.AMQPExchange)
		os.Exit(1)
	}

	alerts := worker.NewAlertWorker(be.Repository, worker.LogNotifier{Logger: logger.Logger})

	ctx = applog.WithLogger(ctx, logger)
	err = be.Publisher.ConsumeBudgetAlerts(ctx, alerts.HandleBudgetAlert)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err.Error())
	}

	_ = cli.GracefulShutdown(logger, 5*time.Second, func(context.Context) error {
		delivered, dropped := alerts.Stats()
		logger.Info("Worker stopping", "delivered", delivered, "dropped", dropped)
		return be.Cleanup()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}
