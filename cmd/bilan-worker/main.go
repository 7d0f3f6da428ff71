package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bilan/internal/amqp"
	"bilan/internal/cli"
	applog "bilan/internal/log"
	"bilan/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting bilan-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is process local; the worker will not see the server's data")
	}

	// the worker only consumes, so the backend gets no notifier
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	be := cli.InitBackend(context.Background(), logger, &storeCfg)

	writer, err := cli.NewReportWriter(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize report writer", "error", err)
		os.Exit(1)
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	reports := worker.NewReportWorker(be.Store, writer, cfg.StoreTimeout)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		logger.Info("Shutting down worker...")
	})

	go func() {
		err := consumer.ConsumePeriodChanged(ctx, reports.HandlePeriodChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	if err := consumer.Close(); err != nil {
		logger.Warn("AMQP close error", "error", err)
	}
	if err := be.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
