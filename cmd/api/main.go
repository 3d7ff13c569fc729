package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"github.com/azizikri/deal-claim/internal/config"
	httphandler "github.com/azizikri/deal-claim/internal/delivery/http"
	"github.com/azizikri/deal-claim/internal/delivery/kafka"
	"github.com/azizikri/deal-claim/internal/logging"
	"github.com/azizikri/deal-claim/internal/metrics"
	"github.com/azizikri/deal-claim/internal/repository"
	"github.com/azizikri/deal-claim/internal/tracing"
	"github.com/azizikri/deal-claim/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.App.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	metrics.MustRegister()

	pool, err := initDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool, cfg.Database.Migrations, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	store := repository.New(pool, repository.WithLockTimeout(cfg.Ledger.LockTimeout))

	ledgerOpts := []usecase.LedgerOption{
		usecase.WithLogger(logger.With().Str("component", "ledger").Logger()),
		usecase.WithRetryPolicy(usecase.RetryPolicy{
			MaxAttempts:    cfg.Ledger.MaxAttempts,
			Backoff:        cfg.Ledger.RetryBackoff,
			AttemptTimeout: cfg.Ledger.TxTimeout,
		}),
	}
	if rdb := initRedis(ctx, cfg.Redis, logger); rdb != nil {
		defer rdb.Close()
		cache := repository.NewSnapshotCache(store, rdb, cfg.Redis.TTL, logger)
		ledgerOpts = append(ledgerOpts, usecase.WithSnapshotReader(cache))
	}
	ledger := usecase.NewClaimLedger(store, ledgerOpts...)
	catalog := usecase.NewDealCatalog(store)

	g, gctx := errgroup.WithContext(ctx)

	var gateway usecase.ClaimGateway
	var clients []*kgo.Client
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()

	if cfg.EventDrivenEnabled {
		brokers := strings.Split(cfg.Kafka.Brokers, ",")

		requestClient, err := newConsumerClient(brokers, cfg.Kafka.ClientID, cfg.Kafka.GroupID, kafka.RequestTopics()...)
		if err != nil {
			return fmt.Errorf("create kafka client: %w", err)
		}
		clients = append(clients, requestClient)

		if err := kafka.EnsureTopics(ctx, requestClient, cfg.Kafka, logger); err != nil {
			logger.Warn().Err(err).Msg("failed to ensure topics")
		}

		retryClient, err := newConsumerClient(brokers, cfg.Kafka.ClientID+"-retry", cfg.Kafka.RetryGroupID, kafka.RetryTopics()...)
		if err != nil {
			return fmt.Errorf("create retry kafka client: %w", err)
		}
		clients = append(clients, retryClient)

		replyClient, err := newReplyClient(brokers, cfg.Kafka.ClientID+"-reply", kafka.ReplyTopic(cfg.Kafka.InstanceID))
		if err != nil {
			return fmt.Errorf("create reply kafka client: %w", err)
		}
		clients = append(clients, replyClient)

		kgateway := kafka.NewGateway(cfg.Kafka, requestClient, logger)
		gateway = kgateway

		consumer := kafka.NewConsumer(cfg.Kafka, requestClient, ledger, logger)
		retryConsumer := kafka.NewConsumer(cfg.Kafka, retryClient, ledger, logger)

		g.Go(func() error { consumer.Start(gctx); return nil })
		g.Go(func() error { retryConsumer.StartRetry(gctx); return nil })
		g.Go(func() error { kgateway.ConsumeReplies(gctx, replyClient); return nil })
	} else {
		gateway = kafka.NewDirectGateway(ledger)
	}

	r := chi.NewRouter()
	r.Use(httphandler.RequestLogging(logger)...)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	httphandler.NewHandler(gateway, catalog).Routes(r, httphandler.NewAuthenticator(cfg.Auth.JWTSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info().Str("port", cfg.App.Port).Bool("event_driven", cfg.EventDrivenEnabled).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
		for _, c := range clients {
			c.Close()
		}
		clients = nil
		return nil
	})

	return g.Wait()
}

func initDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// initRedis returns nil when the cache is disabled or unreachable; the ledger
// then reads snapshots straight from Postgres.
func initRedis(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, snapshot cache disabled")
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func newConsumerClient(brokers []string, clientID, groupID string, topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
}

func newReplyClient(brokers []string, clientID, topic string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumeTopics(topic),
	)
}
