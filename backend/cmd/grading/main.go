package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"

	"school_grading/backend/internal/catalog"
	"school_grading/backend/internal/gateway"
	"school_grading/backend/internal/health"
	"school_grading/backend/internal/queue"
	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
)

func main() {
	// 1. Load Configuration
	_ = shared.LoadEnv(".env")
	cfg, err := shared.LoadServiceConfig("grading")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	shared.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if err := shared.ValidateServiceConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Security.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}
	shared.LogConfig(cfg)

	// 2. Connect to MongoDB
	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := shared.DisconnectMongoDB(client); err != nil {
			log.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()

	st := store.NewMongoStore(client, db)
	if err := st.EnsureIndexes(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to create indexes")
	}

	// 3. Ranking queue (optional: synchronous ranking still works without it)
	var svcs *gateway.Services
	deps := map[string]health.Pinger{
		"mongodb": func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
	}
	redisClient, err := queue.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("ranking queue unavailable, job endpoint disabled")
		svcs = gateway.NewServices(st, cfg.Ranking.Concurrency, nil)
	} else {
		defer redisClient.Close()
		svcs = gateway.NewServices(st, cfg.Ranking.Concurrency, queue.NewProducer(redisClient))
		deps["redis"] = func(ctx context.Context) error { return redisClient.Client().Ping(ctx).Err() }
	}

	// 4. Servers
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      gateway.SetupRoutes(svcs, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	healthServer := health.NewServer()

	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.GRPCPort).Msg("failed to listen")
	}

	// 5. Scheduled status refresh for every school
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Scheduler.StatusRefreshSpec, func() {
		refreshStatuses(svcs.Catalog)
	})
	if err != nil {
		log.Fatal().Err(err).Str("spec", cfg.Scheduler.StatusRefreshSpec).Msg("invalid status refresh schedule")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("grading API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.GRPCPort).Msg("health endpoint listening")
		return healthServer.GRPC.Serve(grpcListener)
	})
	g.Go(func() error {
		healthServer.Watch(gctx, 15*time.Second, deps)
		return nil
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	// 6. Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down grading service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		healthServer.Shutdown()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("grading service exited with error")
	}
	log.Info().Msg("grading service stopped")
}

func refreshStatuses(cat *catalog.CatalogService) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := cat.RefreshStatuses(ctx, "", time.Now())
	if err != nil {
		log.Error().Err(err).Msg("status refresh failed")
		return
	}
	log.Info().Int("terms", res.Terms).Int("sequences", res.Sequences).Msg("period statuses refreshed")
}
