package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/attempt-session-service/internal/backend"
	"github.com/SAP-F-2025/attempt-session-service/internal/cache"
	"github.com/SAP-F-2025/attempt-session-service/internal/config"
	"github.com/SAP-F-2025/attempt-session-service/internal/handlers"
	"github.com/SAP-F-2025/attempt-session-service/internal/middleware"
	"github.com/SAP-F-2025/attempt-session-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/attempt-session-service/internal/services"
	"github.com/SAP-F-2025/attempt-session-service/internal/storage"
	"github.com/SAP-F-2025/attempt-session-service/internal/utils"
	"github.com/SAP-F-2025/attempt-session-service/internal/validator"
	"github.com/SAP-F-2025/attempt-session-service/pkg"
	"github.com/SAP-F-2025/attempt-session-service/pkg/monitoring"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := utils.NewLogger(cfg.Environment, cfg.LogLevel)
	slogger := utils.ToSlogLogger(logger)

	if err := run(cfg, logger); err != nil {
		slogger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger utils.Logger) error {
	slogger := utils.ToSlogLogger(logger)
	ctx := context.Background()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	publisher, err := cfg.Event.CreateEventPublisher(slogger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	archive, err := storage.NewArchive(ctx, cfg.Storage, slogger)
	if err != nil {
		return err
	}

	remote := backend.NewRestyBackend(backend.Config{
		BaseURL:      cfg.Backend.BaseURL,
		APIKey:       cfg.Backend.APIKey,
		APISecret:    cfg.Backend.APISecret,
		Timeout:      cfg.Backend.Timeout,
		Retries:      cfg.Backend.Retries,
		FetchMethod:  cfg.Backend.FetchMethod,
		SaveMethod:   cfg.Backend.SaveMethod,
		SubmitMethod: cfg.Backend.SubmitMethod,
	}, slogger)

	sessionService := services.NewAttemptSessionService(services.Dependencies{
		Backend:   remote,
		Snapshots: postgres.NewSnapshotPostgreSQL(db),
		Cache:     cache.NewRedisCache(redisClient, zapLogger),
		Events:    publisher,
		Archive:   archive,
		Validator: validator.New(),
		Logger:    slogger,
		Config:    cfg.Session,
	})

	scheduler := services.NewScheduler(sessionService, slogger)
	if err := scheduler.Start(cfg.Session.AutosaveInterval, cfg.Session.ExpirySweep); err != nil {
		return err
	}

	monitoring.Init()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ContextLogger(logger))
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(monitoring.MetricsMiddleware())

	var parser middleware.TokenParser
	if cfg.Auth.Enabled {
		parser = middleware.NewCasdoorParser(cfg.Auth)
	} else {
		logger.Warn("Authentication disabled, trusting the X-User-ID header")
	}
	handlers.NewHandlerManager(sessionService, logger).SetupRoutes(router, middleware.Auth(parser, logger))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Attempt session service listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		scheduler.Stop()
		return err
	case sig := <-quit:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	scheduler.Stop()
	sessionService.Shutdown(shutdownCtx)
	return nil
}

func newZapLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
