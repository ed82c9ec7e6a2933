// Package main is the entry point for the GardenWatch API server.
//
// It loads configuration, connects to Postgres and runs pending migrations,
// builds the alert engine (timezone resolver, caches, per-bucket scheduler,
// web-push fan-out), wires the HTTP chassis, and serves until SIGINT/SIGTERM
// triggers a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"gardenwatch/internal/alerts"
	"gardenwatch/internal/api/handlers"
	"gardenwatch/internal/config"
	"gardenwatch/internal/core"
	"gardenwatch/internal/db"
	"gardenwatch/internal/geo"
	"gardenwatch/internal/notify"
	"gardenwatch/internal/observability"
	"gardenwatch/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("gardenwatch API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	// Database.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(cfg.Database.URL.Unmask()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	pool, err := db.Connect(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	subscriptionRepo := db.NewSubscriptionRepository(pool)
	notificationRepo := db.NewNotificationRepository(pool)

	metrics := observability.NewMetrics()

	// Timezone resolution: parses the embedded polygon index once at startup.
	resolver, err := geo.NewDefaultResolver()
	if err != nil {
		return fmt.Errorf("building timezone resolver: %w", err)
	}

	// Forecast provider and current-conditions service.
	weatherClient := weather.NewClient(weather.ClientConfig{
		APIKey:  cfg.Weather.APIKey.Unmask(),
		BaseURL: cfg.Weather.BaseURL,
		Lang:    cfg.Weather.Lang,
		Logger:  logger,
		Metrics: metrics,
	})
	weatherCache := weather.NewCache(cfg.Weather.CacheTTL, nil)
	weatherService := weather.NewService(weatherClient, weatherCache, logger, metrics)

	// Push fan-out.
	pushSender := notify.NewWebPushSender(notify.VAPIDKeys{
		Subject:    cfg.Push.VAPIDSubject,
		PublicKey:  cfg.Push.VAPIDPublicKey,
		PrivateKey: cfg.Push.VAPIDPrivateKey.Unmask(),
	})
	fanout := notify.NewService(notify.ServiceConfig{
		Subscriptions: subscriptionRepo,
		Notifications: notificationRepo,
		Sender:        pushSender,
		Logger:        logger,
		Metrics:       metrics,
		RadiusKm:      cfg.Push.RadiusKm,
	})

	// Alert orchestrator with its per-bucket daily scheduler.
	scheduler := alerts.NewScheduler(resolver, logger)
	defer scheduler.CancelAll()

	alertService := alerts.NewService(alerts.ServiceConfig{
		Provider:       weatherClient,
		Resolver:       resolver,
		Cache:          alerts.NewCache(),
		Scheduler:      scheduler,
		Notifier:       fanout,
		FrostThreshold: cfg.Alerts.FrostThreshold,
		Logger:         logger,
		Metrics:        metrics,
	})

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = append(srv.HealthProbes, core.HealthProbeFunc{
		ProbeName: "database",
		CheckFunc: pool.Ping,
	})

	alertsHandler := handlers.NewAlertsHandler(alertService, logger)
	weatherHandler := handlers.NewWeatherHandler(weatherService, logger)
	pushHandler := handlers.NewPushHandler(subscriptionRepo, pushSender, cfg.Push.VAPIDPublicKey, logger)
	inboxHandler := handlers.NewNotificationsHandler(notificationRepo, logger)

	srv.APIRegistrars = append(srv.APIRegistrars,
		alertsHandler.RegisterRoutes,
		weatherHandler.RegisterRoutes,
		pushHandler.RegisterPublicRoutes,
		func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(srv.AuthMiddleware)
				pushHandler.RegisterRoutes(r)
				inboxHandler.RegisterRoutes(r)
			})
		},
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer serves until a shutdown signal or listener error, then drains
// in-flight requests within the configured shutdown timeout.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates the application-wide structured JSON logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
