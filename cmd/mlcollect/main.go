// Package main wires together the collection service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/api"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/clock/system"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/config"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/dispatcher"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/id/uuid"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/logging"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/metrics"
	queueMemory "github.com/Nurhen02/ML-Data-Collection-Platform/internal/queue/memory"
	queueRedis "github.com/Nurhen02/ML-Data-Collection-Platform/internal/queue/redis"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrapers"
	storageMemory "github.com/Nurhen02/ML-Data-Collection-Platform/internal/storage/memory"
	storagePostgres "github.com/Nurhen02/ML-Data-Collection-Platform/internal/storage/postgres"
	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		jobs    scrape.JobStore
		results scrape.ResultStore
	)
	if cfg.DB.DSN != "" {
		store, err := storagePostgres.NewStore(ctx, storagePostgres.StoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		defer store.Close()
		jobs, results = store, store
		logger.Info("using postgres store")
	} else {
		store := storageMemory.NewStore()
		jobs, results = store, store
		logger.Info("using in-memory store")
	}

	var queue scrape.Queue
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping failed", zap.Error(err))
		}
		redisQueue := queueRedis.NewQueue(rdb, logger.Named("queue"))
		go redisQueue.RunMover(ctx)
		queue = redisQueue
		logger.Info("using redis queue", zap.String("addr", cfg.Redis.Addr))
	} else {
		memQueue := queueMemory.NewQueue(cfg.Worker.QueueDepth)
		defer memQueue.Close()
		queue = memQueue
		logger.Info("using in-memory queue")
	}

	clock := system.New()
	idGen := uuid.New()
	factory := scrapers.NewFactory(scrapers.Config{
		UserAgent:     cfg.Scraper.UserAgent,
		FetchTimeout:  cfg.FetchTimeout(),
		FetchAttempts: cfg.HTTP.MaxAttempts,
		Headless: scrapers.HeadlessConfig{
			NavTimeout:    cfg.NavTimeout(),
			WaitTimeout:   cfg.WaitTimeout(),
			ScreenshotDir: cfg.Headless.ScreenshotDir,
		},
		Reddit: scrapers.RedditConfig{
			ClientID:     cfg.Reddit.ClientID,
			ClientSecret: cfg.Reddit.ClientSecret,
			UserAgent:    cfg.Reddit.UserAgent,
		},
	}, clock, logger.Named("scrapers"))

	workerCfg := worker.Config{
		MaxRetries: cfg.Worker.MaxRetries,
		RetryDelay: cfg.RetryDelay(),
	}
	var workers []*worker.Worker
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			jobs,
			results,
			factory,
			clock,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	apiServer := api.NewServer(jobs, results, dispatch, idGen, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Worker.Concurrency))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
