package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/fsh-formation/templater/internal/airtable"
	"github.com/fsh-formation/templater/internal/app"
	"github.com/fsh-formation/templater/internal/docgen"
	"github.com/fsh-formation/templater/internal/gateway"
	"github.com/fsh-formation/templater/internal/history"
	"github.com/fsh-formation/templater/internal/observability"
	"github.com/fsh-formation/templater/internal/platform/cache"
	"github.com/fsh-formation/templater/internal/platform/db"
	"github.com/fsh-formation/templater/internal/templates"
	"github.com/fsh-formation/templater/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		rc, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, template cache disabled", slog.Any("error", err))
		} else {
			redisClient = rc
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		}
	}

	airtableClient := airtable.NewClient(cfg.AirtableBaseURL, cfg.AirtableToken, cfg.AirtableBaseID)
	schemaCache := airtable.NewSchemaCache(airtableClient, logger)
	if redisClient != nil {
		// worker refreshes land in the shared snapshot; pick them up here
		schemaCache.UseStore(redisClient)
	}
	if err := schemaCache.Refresh(ctx); err != nil {
		// rich-text routing degrades to scalar until a refresh succeeds
		logger.Warn("initial schema fetch", slog.Any("error", err))
		if cfg.RedisAddr != "" {
			enqueueSchemaRefresh(ctx, cfg.RedisAddr, logger)
		}
	}

	var fetcher docgen.TemplateFetcher = templates.NewFetcher()
	if redisClient != nil {
		fetcher = templates.NewCachedFetcher(fetcher, redisClient, cfg.TemplateCacheTTL, logger)
	}

	var historyRepo *history.Repository
	if cfg.PGDSN != "" {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Warn("postgres unavailable, history disabled", slog.Any("error", err))
		} else {
			defer pool.Close()
			historyRepo = history.NewRepository(pool, logger)
		}
	}
	if historyRepo == nil {
		historyRepo = history.NewRepository(nil, logger)
	}

	records := airtable.NewRecordSource(airtableClient)
	service := docgen.NewService(fetcher, records, schemaCache, logger)
	metrics := observability.NewMetrics()
	handler := gateway.NewHandler(service, records, schemaCache, historyRepo, metrics, logger, cfg.TemplateBaseURL)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		GatewayHandler: handler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

// enqueueSchemaRefresh hands the failed startup fetch to the worker,
// which retries with backoff.
func enqueueSchemaRefresh(ctx context.Context, redisAddr string, logger *slog.Logger) {
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	if err != nil {
		logger.Warn("queue client", slog.Any("error", err))
		return
	}
	defer func() {
		_ = client.Close()
	}()
	if _, err := client.EnqueueSchemaRefresh(ctx, "startup"); err != nil {
		logger.Warn("enqueue schema refresh", slog.Any("error", err))
	}
}
