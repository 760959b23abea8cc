package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"citywatch/internal/api"
	"citywatch/internal/config"
	"citywatch/internal/failure"
	"citywatch/internal/geo"
	"citywatch/internal/scheduler"
	"citywatch/internal/store"
	"citywatch/internal/tracker"
	"citywatch/internal/weather"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting city weather tracker")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Weather client with cache, retry and circuit breaker
	weatherClient := weather.NewClient(weather.ClientConfig{
		APIKey:         cfg.Weather.APIKey,
		BaseURL:        cfg.Weather.BaseURL,
		Timeout:        cfg.Weather.Timeout,
		CacheTTL:       cfg.Weather.CacheTTL,
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialDelay:   cfg.Retry.InitialDelay,
		Multiplier:     cfg.Retry.Multiplier,
		BreakerTimeout: cfg.CircuitBreaker.Timeout,
	}, logger)

	// Geolocation and reverse geocoding
	locator := geo.NewIPLocator(cfg.Geo.IPEndpoint, logger)

	var geocoder geo.ReverseGeocoder = geo.NewOpenWeatherGeocoder(cfg.Weather.APIKey, cfg.Weather.GeoURL, logger)
	if cfg.Geo.GoogleAPIKey != "" {
		geocoder = geo.NewGoogleGeocoder(cfg.Geo.GoogleAPIKey, logger)
	}

	// Local persistence
	kv, err := store.NewFileKV(cfg.Storage.Dir)
	if err != nil {
		logger.Warn("Storage directory unavailable", zap.Error(err))
	}
	var backing store.KV
	if kv != nil {
		backing = kv
	}
	cityStore := store.NewAdapter(backing, cfg.Storage.Key, logger)

	// City collection state machine
	cityTracker := tracker.New(cityStore, weatherClient, locator, geocoder, logger)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := cityTracker.Init(initCtx); err != nil {
		// The tracker already fell back to manage mode with a message.
		logger.Warn("Initialization incomplete",
			zap.String("kind", failure.KindOf(err).String()),
			zap.Error(err))
	}
	cancelInit()

	// Periodic refresh
	refreshScheduler := scheduler.New(cityTracker, cfg.Refresh.Interval, logger)
	if err := refreshScheduler.Start(); err != nil {
		logger.Fatal("Failed to start refresh scheduler", zap.Error(err))
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	// Setup handlers and routes
	handler := api.NewHandler(cityTracker, weatherClient, logger)
	api.SetupRoutes(app, handler)

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Release timers before tearing down the app
	refreshScheduler.Stop()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func errorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	// Default to 500 status code
	code := fiber.StatusInternalServerError

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}
