package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robertrittmuller/stagemaster-ai/internal/adapter/repo"
	httpapi "github.com/robertrittmuller/stagemaster-ai/internal/http"
	"github.com/robertrittmuller/stagemaster-ai/internal/http/handlers"
	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/queue"
	"github.com/robertrittmuller/stagemaster-ai/internal/storage"
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
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	store, err := storage.Open(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("api: failed to configure storage")
	}

	var q queue.Queue = queue.NewPostgresQueue(runner)
	if cfg.RedisURL != "" {
		client, err := queue.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("api: redis unavailable, workers will poll postgres")
		} else {
			defer client.Close()
			q = queue.NewRedisQueue(client, cfg.QueueName)
		}
	}

	app := handlers.NewApp(repo.NewJobRepository(runner), repo.NewImageRepository(runner), store, q, cfg, &logger)

	opts := httpapi.RouterOptions{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	}
	if fs, ok := store.(*storage.FileStore); ok {
		opts.StaticDir = fs.BasePath()
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, opts), &logger)
	if err := server.Run(ctx, cfg.HTTPIdleTimeout); err != nil {
		logger.Fatal().Err(err).Msg("api: http server failed")
	}
	logger.Info().Msg("api: stopped")
}
