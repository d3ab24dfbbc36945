package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mcaceresg1/ledger-reports/internal/app"
	"github.com/mcaceresg1/ledger-reports/internal/balance"
	"github.com/mcaceresg1/ledger-reports/internal/coa"
	"github.com/mcaceresg1/ledger-reports/internal/observability"
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
		logger.Warn("redis unavailable, page cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	tenantRepo := tenant.NewRepository(pool)
	directory := tenant.NewDirectory(tenantRepo)
	coaRepo := coa.NewRepository(pool)
	balanceRepo := balance.NewRepository(pool)
	pageCache := balance.NewCache(redisClient, cfg.CacheTTL)

	materializer := balance.NewMaterializer(directory, coaRepo, balanceRepo, pageCache, logger)
	service := balance.NewService(materializer, directory, balanceRepo, pageCache)

	var enqueue balance.Enqueuer
	if cfg.RedisAddr != "" {
		queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := queue.Close(); err != nil {
				logger.Warn("queue close", slog.Any("error", err))
			}
		}()
		enqueue = queue
	}

	balanceHandler := balance.NewHandler(logger, service, materializer, enqueue, cfg.ExportRateLimit, cfg.ExportRateWindow)
	tenantHandler := tenant.NewHandler(logger, tenantRepo)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Pool:           pool,
		Metrics:        metrics,
		BalanceHandler: balanceHandler,
		TenantHandler:  tenantHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
