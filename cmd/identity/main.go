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
	httpHandler "banking-services/internal/adapter/http/handler"
	"banking-services/internal/adapter/storage"
	"banking-services/internal/core/ports"
	"banking-services/internal/service"
	"banking-services/pkg/logger"
	"banking-services/pkg/telemetry"

	"github.com/gin-gonic/gin"
)

const serviceName = "banking-identity"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.IdentityServer.Mode)

	log.Info().
		Str("mode", cfg.IdentityServer.Mode).
		Int("port", cfg.IdentityServer.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting identity gate")

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry.Endpoint, cfg.Telemetry.SampleRatio)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("in-memory directory is not shared with the transaction service, every customer will be rejected")
	}

	store, err := storage.Open(ctx, cfg.Database, serviceName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open account directory")
	}
	defer store.Close()

	var tokenSvc ports.TokenService
	if cfg.ServiceAuth.Secret != "" {
		tokenSvc = service.NewJWTTokenService(cfg.ServiceAuth.Secret, cfg.ServiceAuth.Expiry, cfg.ServiceAuth.Issuer)
	} else {
		log.Warn().Msg("service_auth.secret is empty, /authenticate accepts unsigned calls")
	}

	router := httpHandler.SetupIdentityRouter(httpHandler.IdentityRouterDeps{
		IdentitySvc:    service.NewIdentityService(store.Store, log),
		TokenSvc:       tokenSvc,
		HealthCheckers: []ports.HealthChecker{store.Health},
		Propagator:     telemetry.Propagator(),
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.IdentityServer.Addr(),
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
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush traces")
	}

	log.Info().Msg("Server exited")
}
