package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robertrittmuller/stagemaster-ai/internal/adapter/repo"
	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/infra/credentials"
	"github.com/robertrittmuller/stagemaster-ai/internal/media"
	"github.com/robertrittmuller/stagemaster-ai/internal/providers/openrouter"
	"github.com/robertrittmuller/stagemaster-ai/internal/queue"
	"github.com/robertrittmuller/stagemaster-ai/internal/staging"
	"github.com/robertrittmuller/stagemaster-ai/internal/storage"
)

const (
	pollInterval    = 2 * time.Second
	downloadTimeout = 60 * time.Second
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	store, err := storage.Open(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("worker: failed to configure storage")
	}

	apiKey, err := credentials.NewStore(runner).ResolveOpenRouterAPIKey(ctx, cfg.OpenRouterAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: failed to load openrouter api key from store")
	}
	llm, err := openrouter.NewClient(openrouter.Options{
		APIKey:       apiKey,
		BaseURL:      cfg.OpenRouterBaseURL,
		Referer:      cfg.OpenRouterReferer,
		Title:        cfg.OpenRouterTitle,
		TextTimeout:  cfg.TextTimeout,
		ImageTimeout: cfg.ImageTimeout,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure openrouter client")
	}

	httpFetcher := media.NewHTTPFetcher(&http.Client{Timeout: downloadTimeout})
	fetcher := media.NewRouter(media.NewStorageFetcher(store, cfg.StoragePrefixes()...), httpFetcher, &logger)

	pipeline, err := staging.NewPipeline(staging.Options{
		Config: staging.Config{
			AnalysisModel:   cfg.AnalysisModel,
			GenerationModel: cfg.GenerationModel,
			ResultsBucket:   cfg.BucketResults,
		},
		Jobs:       repo.NewJobRepository(runner),
		Store:      store,
		Text:       llm,
		Images:     llm,
		Loader:     media.NewLoader(fetcher, &logger),
		Downloader: httpFetcher,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build pipeline")
	}

	q, poll, closeQueue := openQueue(ctx, cfg, runner, &logger)
	defer closeQueue()

	consumer := queue.NewConsumer(q, pipeline.Process, queue.ConsumerOptions{
		Concurrency:     cfg.WorkerConcurrency,
		PollInterval:    poll,
		ShutdownTimeout: cfg.WorkerShutdown,
		Logger:          &logger,
	})

	logger.Info().
		Int("concurrency", cfg.WorkerConcurrency).
		Str("analysis_model", cfg.AnalysisModel).
		Str("generation_model", cfg.GenerationModel).
		Msg("worker: started")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// openQueue prefers Redis and falls back to claiming pending rows from
// Postgres. On Redis, jobs left pending past cfg.StaleJobAfter are still
// swept from Postgres, covering failed pushes and an API running without Redis.
func openQueue(ctx context.Context, cfg *infra.Config, runner infra.SQLExecutor, logger *infra.Logger) (queue.Queue, time.Duration, func()) {
	pg := queue.NewPostgresQueue(runner)
	if cfg.RedisURL != "" {
		client, err := queue.Connect(ctx, cfg.RedisURL)
		if err == nil {
			logger.Info().Str("queue", cfg.QueueName).Dur("stale_after", cfg.StaleJobAfter).Msg("worker: consuming redis queue")
			q := queue.NewSweepingQueue(queue.NewRedisQueue(client, cfg.QueueName), pg, queue.SweepOptions{
				Interval:   cfg.StaleJobAfter,
				StaleAfter: cfg.StaleJobAfter,
				Logger:     logger,
			})
			return q, 0, func() { _ = client.Close() }
		}
		logger.Warn().Err(err).Msg("worker: redis unavailable, polling postgres for pending jobs")
	}
	return pg, pollInterval, func() {}
}
