package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendwise/internal/auth"
	"spendwise/internal/backend"
	"spendwise/internal/cache"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/core"
	apphttp "spendwise/internal/http"
	"spendwise/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).Validate)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	res, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", backendConfig.Type)
		os.Exit(1)
	}

	expenseCache := cache.NewLRUCache[[]core.Expense](cfg.InsightsCacheSize, cfg.InsightsCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(expenseCache)
	cacheManager.StartCleanup(time.Minute)

	opts := []services.Option{services.WithExpenseCache(expenseCache)}
	if res.Events != nil {
		opts = append(opts, services.WithEventPublisher(res.Events))
	}

	codec := auth.NewSessionCodec([]byte(cfg.SecretKey))
	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		SecureCookies:  cfg.SecureCookies,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, apphttp.Deps{
		Accounts:   services.NewAccountService(res.Store, codec, cfg.SessionTTL, opts...),
		Expenses:   services.NewExpenseService(res.Store, opts...),
		Insights:   services.NewInsightsService(res.Store, opts...),
		Store:      res.Store,
		Logger:     logger,
		CacheStats: expenseCache.Stats,
		PurgeCache: expenseCache.Purge,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		_ = res.Cleanup()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting spendwise server",
		"port", cfg.Port,
		"backend", backendConfig.Type,
		"events", res.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
