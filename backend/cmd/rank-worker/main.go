package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"school_grading/backend/internal/queue"
	"school_grading/backend/internal/ranking"
	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
	"school_grading/backend/internal/worker"
)

func main() {
	// Load configuration
	_ = shared.LoadEnv(".env")
	cfg, err := shared.LoadServiceConfig("rank-worker")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	shared.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if err := shared.ValidateServiceConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	shared.LogConfig(cfg)

	// Initialize database
	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := shared.DisconnectMongoDB(client); err != nil {
			log.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()
	engine := ranking.NewEngine(store.NewMongoStore(client, db), cfg.Ranking.Concurrency)

	// Initialize Redis client
	redisClient, err := queue.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()

	consumer := queue.NewConsumer(redisClient)
	pool := worker.NewWorkerPool(cfg.Worker.Count)
	processor := worker.NewRankProcessor(engine, pool, consumer.DeadLetter)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Jobs already accepted run to completion on shutdown
	pool.Start(context.Background())

	// Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux, ReadTimeout: 15 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info().Str("queue", cfg.Redis.RankQueue).Int("workers", cfg.Worker.Count).Msg("rank worker consuming")
		if err := consumer.Consume(ctx, processor.Handle); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("consumer stopped")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down rank worker...")

	// Stop taking jobs, then let the running ones finish
	// BRPOP returns within the poll timeout, so done always closes
	cancel()
	<-done
	pool.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info().Msg("rank worker exited")
}
