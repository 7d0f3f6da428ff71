package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilan/internal/cache"
	"bilan/internal/cli"
	"bilan/internal/core"
	apphttp "bilan/internal/http"
	applog "bilan/internal/log"
	"bilan/internal/middleware/ratelimit"
	"bilan/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	be := cli.InitBackend(context.Background(), logger, cfg)

	opts := []services.Option{services.WithStoreTimeout(cfg.StoreTimeout)}
	if be.Notifier != nil {
		opts = append(opts, services.WithNotifier(be.Notifier))
	}
	caches := cache.NewManager()
	if cfg.SummaryCacheSize > 0 {
		summaries := cache.NewLRUCache[core.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
		caches.Register(summaries)
		caches.StartCleanup(cfg.SummaryCacheTTL)
		opts = append(opts, services.WithSummaryCache(summaries))
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Budget:    services.NewBudgetService(be.Store, opts...),
		Revenues:  services.NewRevenueService(be.Store, nil, opts...),
		Logger:    logger,
		Ready:     be.Ping,
		Caches:    caches,
		RateLimit: ratelimit.DefaultConfig(),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.StoreTimeout + 5*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting bilan server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", be.Notifier != nil,
		"summary_cache", cfg.SummaryCacheSize)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
