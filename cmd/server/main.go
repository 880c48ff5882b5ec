package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"guestwatch/internal/config"
	"guestwatch/internal/database"
	"guestwatch/internal/dispatch"
	"guestwatch/internal/events"
	"guestwatch/internal/handlers"
	"guestwatch/internal/metrics"
	"guestwatch/internal/realtime"
	"guestwatch/internal/scheduler"
)

const (
	serviceName = "guestwatch"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)
	logger.Info("Starting guestwatch service",
		"service", serviceName,
		"version", version,
		"environment", cfg.Environment)

	// Database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", "error", err)
		}
	}()

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	watchlistRepo := database.NewWatchlistRepository(db, logger)
	alertRepo := database.NewAlertRepository(db, logger)
	notificationRepo := database.NewNotificationRepository(db, logger)
	stationRepo := database.NewStationRepository(db, logger, cfg.Dispatch.StationCacheTTL, cfg.Dispatch.StationCacheSweep)
	directoryRepo := database.NewDirectoryRepository(db, logger)

	// Optional Redis client for cross-instance broadcast fan-out
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer redisClient.Close()
	}

	// Realtime hub
	hub := realtime.NewHub(logger, cfg.Security.JWTSecret, redisClient)

	// Metrics
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	// Dispatcher
	dispatcher := dispatch.New(
		logger,
		watchlistRepo,
		alertRepo,
		stationRepo,
		directoryRepo,
		notificationRepo,
		hub,
		collector,
		cfg.Dispatch.Timeout,
	)

	// Scheduler for retention cleanup
	taskScheduler := scheduler.NewScheduler(cfg, logger, alertRepo, notificationRepo)

	// HTTP router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	httpHandlers := handlers.NewHTTPHandler(cfg, logger, dispatcher, watchlistRepo, alertRepo, notificationRepo, hub)
	httpHandlers.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Start realtime hub
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.SubscribeToRedis(ctx)
	}()

	// Start guest event consumer
	var consumer *events.Consumer
	if cfg.Kafka.Enabled {
		consumer = events.NewConsumer(cfg, logger, dispatcher, collector)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("Guest event consumer failed", "error", err)
				cancel()
			}
		}()
	}

	// Start scheduler
	if cfg.Scheduler.Enabled {
		if err := taskScheduler.Start(); err != nil {
			logger.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	// Start HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting HTTP server", "port", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Shutting down services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server gracefully", "error", err)
	}

	if consumer != nil {
		consumer.Stop()
	}
	if cfg.Scheduler.Enabled {
		taskScheduler.Stop()
	}

	// Let in-flight dispatches run to completion
	dispatcher.Wait()

	wg.Wait()
	logger.Info("Service shutdown complete")
}

// setupLogging configures structured logging
func setupLogging(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: cfg.Logging.IncludeSource,
	}

	var handler slog.Handler
	if cfg.Environment == "production" || cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, handlerOptions)
	} else {
		handler = slog.NewTextHandler(os.Stdout, handlerOptions)
	}

	logger := slog.New(handler)
	logger = logger.With(
		"service", serviceName,
		"version", version,
		"environment", cfg.Environment,
	)

	slog.SetDefault(logger)
	return logger
}
