package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/quake-report/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-report/internal/adapter/kafka"
	"github.com/couchcryptid/quake-report/internal/adapter/usgs"
	"github.com/couchcryptid/quake-report/internal/app"
	"github.com/couchcryptid/quake-report/internal/config"
	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/couchcryptid/quake-report/internal/presenter"
	"github.com/couchcryptid/quake-report/internal/settings"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := settings.NewStore(cfg.SettingsPath, logger)
	if err != nil {
		logger.Error("failed to load settings", "path", cfg.SettingsPath, "error", err)
		os.Exit(1)
	}

	client := usgs.NewClient(cfg.USGSConnectTimeout, cfg.USGSReadTimeout, metrics, logger)

	opts := app.Options{
		BuildURL: func(q domain.Query) (string, error) { return usgs.BuildRequestURL(cfg.USGSEndpoint, q) },
		Query:    store,
		Display:  presenter.Options{Zone: cfg.DisplayZone, Locale: cfg.DisplayLocale},
	}

	// Feed publishing is feature-flagged via KAFKA_ENABLED.
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger, metrics)
		opts.Publisher = publisher
		logger.Info("feed publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("feed publishing disabled")
	}

	quakes := app.New(client, opts, logger, metrics)
	store.OnChange(quakes.SettingsChanged)

	srv := httpadapter.NewServer(cfg.HTTPAddr, quakes, quakes, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the control loop.
	loopDone := make(chan struct{})
	go func() {
		quakes.Run(ctx)
		close(loopDone)
	}()

	if publisher != nil {
		go publisher.Run(ctx)
	}

	stopWatch, err := store.Watch()
	if err != nil {
		logger.Warn("settings watch disabled", "path", cfg.SettingsPath, "error", err)
		stopWatch = func() {}
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// First cycle, as if the list screen just opened.
	if err := quakes.Refresh(); err != nil {
		logger.Warn("initial load failed", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	stopWatch()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := quakes.Close(shutdownCtx); err != nil {
		logger.Error("load cycle did not finish before shutdown", "error", err)
	}
	<-loopDone
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
