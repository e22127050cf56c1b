/**
 * @description
 * Entry point for the condominium API.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Fblink88/ComunidadElMaiten/internal/api"
	"github.com/Fblink88/ComunidadElMaiten/internal/app"
	"github.com/Fblink88/ComunidadElMaiten/internal/config"
	"github.com/Fblink88/ComunidadElMaiten/internal/logging"
	"github.com/Fblink88/ComunidadElMaiten/internal/store"
	"github.com/Fblink88/ComunidadElMaiten/pkg/gatewayclient"
	"github.com/Fblink88/ComunidadElMaiten/pkg/metrics"
	condorabbit "github.com/Fblink88/ComunidadElMaiten/pkg/rabbitmq"
	"github.com/Fblink88/ComunidadElMaiten/pkg/ratelimit"
)

var (
	_ app.Repository = (*store.PostgresRepository)(nil)
	_ app.Repository = (*store.MemoryRepository)(nil)
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var repository app.Repository
	if cfg.DatabaseURL != "" {
		if cfg.AutoMigrate {
			if err := store.Migrate(cfg.DatabaseURL); err != nil {
				logger.Error("failed to apply database migrations", "error", err)
				os.Exit(1)
			}
			logger.Info("database migrations applied")
		}

		pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			logger.Error("unable to parse database URL", "error", err)
			os.Exit(1)
		}
		pgConfig.MaxConns = 20
		pgConfig.MinConns = 2
		pgConfig.MaxConnLifetime = 30 * time.Minute
		pgConfig.MaxConnIdleTime = 5 * time.Minute
		pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

		dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
		if err != nil {
			logger.Error("unable to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbpool.Close()
		logger.Info("database connection established")
		repository = store.NewPostgresRepository(dbpool)
	} else {
		if cfg.IsProduction() {
			logger.Error("DATABASE_URL is required in production")
			os.Exit(1)
		}
		logger.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		repository = store.NewMemoryRepository()
	}

	var publisher app.EventPublisher = &condorabbit.EventProducerFallback{Logger: logger}
	if cfg.RabbitMQURL != "" {
		if producer, err := condorabbit.NewEventProducer(cfg.RabbitMQURL); err == nil {
			publisher = producer
			defer producer.Close()
		} else {
			logger.Warn("failed to connect to RabbitMQ, using fallback publisher", "error", err)
		}
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if cfg.RedisURL != "" {
		if redisClient, err := connectRedis(ctx, cfg.RedisURL); err == nil {
			limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RedisRateLimitPrefix)
			defer redisClient.Close()
		} else {
			logger.Warn("failed to connect to Redis, using per-process rate limiting", "error", err)
		}
	}

	var gateway app.GatewayClient
	if cfg.GatewayEnabled() {
		gateway = flowCheckout{client: gatewayclient.NewClient(gatewayclient.Config{
			BaseURL:         cfg.FlowAPIURL,
			APIKey:          cfg.FlowAPIKey,
			SecretKey:       cfg.FlowSecretKey,
			ConfirmationURL: cfg.FlowConfirmationURL,
			ReturnURL:       cfg.FlowReturnURL,
		})}
	} else {
		logger.Info("FLOW_API_KEY not set, payments are created without checkout links")
	}

	recorder := metrics.NewRecorder()
	service := app.NewService(repository, publisher, gateway, recorder, logger, app.Options{
		EventsExchange:       cfg.EventsExchange,
		BootstrapAdminEmails: cfg.AdminEmails(),
	})
	handler := api.NewHandler(service, api.HandlerOptions{
		Logger:        logger,
		Webhooks:      recorder,
		WebhookSecret: cfg.WebhookSecret,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		Verifier: api.NewJWKSVerifier(api.JWKSConfig{
			URL:      cfg.IdentityJWKSURL,
			Issuer:   cfg.IdentityIssuer,
			Audience: cfg.IdentityAudience,
		}),
		AllowedOrigins:   cfg.AllowedOrigins(),
		Limiter:          limiter,
		WebhookRateLimit: cfg.WebhookRateLimitPerMinute,
		Metrics:          recorder,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}

func connectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
