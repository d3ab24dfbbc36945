package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/mcaceresg1/ledger-reports/internal/app"
	"github.com/mcaceresg1/ledger-reports/internal/balance"
	"github.com/mcaceresg1/ledger-reports/internal/coa"
	jobmetrics "github.com/mcaceresg1/ledger-reports/internal/jobs"
	"github.com/mcaceresg1/ledger-reports/internal/platform/cache"
	"github.com/mcaceresg1/ledger-reports/internal/platform/db"
	"github.com/mcaceresg1/ledger-reports/internal/tenant"
	"github.com/mcaceresg1/ledger-reports/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tenantRepo := tenant.NewRepository(pool)
	directory := tenant.NewDirectory(tenantRepo)
	coaRepo := coa.NewRepository(pool)
	balanceRepo := balance.NewRepository(pool)
	pageCache := balance.NewCache(redisClient, cfg.CacheTTL)

	materializer := balance.NewMaterializer(directory, coaRepo, balanceRepo, pageCache, logger)
	refresh := jobs.NewSnapshotRefreshJob(materializer, balanceRepo, tenantRepo, jobmetrics.NewMetrics(nil), logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Refresh:   refresh,
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: jobs.NewSnapshotRefreshAllTask()},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
