package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"banking-services/config"
	"banking-services/internal/adapter/events/kafka"
	httpHandler "banking-services/internal/adapter/http/handler"
	"banking-services/internal/adapter/http/middleware"
	"banking-services/internal/adapter/identity"
	"banking-services/internal/adapter/storage"
	redisStorage "banking-services/internal/adapter/storage/redis"
	"banking-services/internal/core/ports"
	"banking-services/internal/service"
	"banking-services/pkg/logger"
	"banking-services/pkg/telemetry"

	"github.com/gin-gonic/gin"
)

const serviceName = "banking-api"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting transaction service")

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry.Endpoint, cfg.Telemetry.SampleRatio)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	store, err := storage.Open(ctx, cfg.Database, serviceName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer store.Close()

	healthCheckers := []ports.HealthChecker{store.Health}

	// Identity gate client
	gateOpts := []identity.Option{identity.WithPropagator(telemetry.Propagator())}
	if cfg.ServiceAuth.Secret != "" {
		tokenSvc := service.NewJWTTokenService(cfg.ServiceAuth.Secret, cfg.ServiceAuth.Expiry, cfg.ServiceAuth.Issuer)
		gateOpts = append(gateOpts, identity.WithServiceToken(tokenSvc, cfg.ServiceAuth.Issuer))
	} else {
		log.Warn().Msg("service_auth.secret is empty, identity calls are unsigned")
	}
	gate := identity.NewClient(cfg.Identity, log, gateOpts...)

	// Committed-transaction events
	var publisher ports.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		p := kafka.NewPublisher(cfg.Kafka, log)
		defer func() {
			if err := p.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Kafka writer")
			}
		}()
		publisher = p
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka publishing enabled")
	}

	// Rate limiting
	var rateLimitStore ports.RateLimitStore
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	kernel := service.NewTransactionKernel(gate, store.Store, publisher, log,
		service.WithPublishTimeout(cfg.Kafka.PublishTimeout))
	accountSvc := service.NewAccountService(store.Store, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Kernel:         kernel,
		AccountSvc:     accountSvc,
		RateLimitStore: rateLimitStore,
		RateLimitRules: middleware.RateLimitRules(cfg.RateLimit.TransactionsPerMinute, cfg.RateLimit.AccountsPerMinute),
		HealthCheckers: healthCheckers,
		Propagator:     telemetry.Propagator(),
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := kernel.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Pending transaction events dropped")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush traces")
	}

	log.Info().Msg("Server exited")
}
