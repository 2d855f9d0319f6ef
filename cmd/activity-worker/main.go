package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/amqp"
	"spendwise/internal/backend"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/log"
	"spendwise/internal/worker"
)

// eventSource is the consuming half of the AMQP client.
type eventSource interface {
	ConsumeExpenseEvents(ctx context.Context, handler func(context.Context, *amqp.ExpenseEvent) error) error
}

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting activity worker")

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	backendConfig.RequireAMQP = true

	res, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", backendConfig.Type)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Activity worker running",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"housekeeping_interval", cfg.SessionPruneInterval.String())

	w := worker.NewActivityWorker(res.Store)
	if err := serve(ctx, res.Events, w, cfg.SessionPruneInterval, res.Cleanup); err != nil {
		logger.Error("Activity worker stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Activity worker stopped gracefully")
}

// serve consumes events and runs housekeeping until ctx ends or the consumer
// fails. cleanup always runs before serve returns, since main exits with
// os.Exit on error and deferred calls would be skipped.
func serve(ctx context.Context, events eventSource, w *worker.ActivityWorker, interval time.Duration, cleanup backend.CleanupFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return events.ConsumeExpenseEvents(gctx, w.HandleEvent)
	})
	g.Go(func() error {
		w.RunHousekeeping(gctx, interval)
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if cerr := cleanup(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("backend cleanup: %w", cerr))
	}
	return err
}
