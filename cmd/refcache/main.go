// Command refcache runs the reference-data cache service: it mirrors the
// registry's reference entities in memory, keeps the mirror current by
// consuming change events, and serves lookups over HTTP with fetch-through on
// misses.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/application/refdata"
	"github.com/flightdeck/backend/internal/domain/reference"
	"github.com/flightdeck/backend/internal/infrastructure/auth"
	"github.com/flightdeck/backend/internal/infrastructure/cache"
	"github.com/flightdeck/backend/internal/infrastructure/config"
	"github.com/flightdeck/backend/internal/infrastructure/eventbus"
	"github.com/flightdeck/backend/internal/infrastructure/logger"
	"github.com/flightdeck/backend/internal/infrastructure/registry"
	"github.com/flightdeck/backend/internal/infrastructure/telemetry"
	"github.com/flightdeck/backend/internal/interfaces/http/handler"
	"github.com/flightdeck/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting reference cache service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	// Snapshot cache
	snapshots := cache.NewInMemorySnapshotCache(cache.WithSnapshotCacheLogger(log))
	defer snapshots.Close()

	consumerMetrics, err := telemetry.NewConsumerMetrics(telemetry.ConsumerMetricsConfig{
		Meter:       meterProvider.Meter("refcache"),
		Logger:      log,
		StatsSource: snapshots,
	})
	if err != nil {
		log.Fatal("Failed to initialize consumer metrics", zap.Error(err))
	}
	defer consumerMetrics.Stop()

	// Fetch-through path: credential manager and registry client
	credentials := auth.NewCredentialManager(
		cfg.Registry.BaseURL,
		cfg.Registry.Username,
		cfg.Registry.Password,
		cfg.Registry.RequestTimeout,
		log,
		auth.WithSafetyMargin(cfg.Registry.SafetyMargin),
	)
	registryClient := registry.NewClient(cfg.Registry.BaseURL, credentials, cfg.Registry.RequestTimeout, log)
	resolver := refdata.NewResolver(snapshots, registryClient, log,
		refdata.WithResolverMetrics(consumerMetrics))

	// Event consumption
	subscription := eventbus.NewKafkaSubscription(eventbus.KafkaConfig{
		Brokers:     cfg.Kafka.Brokers,
		StartOffset: cfg.Kafka.StartOffset,
		MaxWait:     cfg.Kafka.MaxWait,
	}, cfg.Kafka.ReferenceTopic, cfg.Kafka.GroupID)
	defer subscription.Close()

	synchronizer := refdata.NewSynchronizer(subscription, snapshots, reference.DefaultCodecRegistry(), log,
		refdata.WithSynchronizerMetrics(consumerMetrics))

	syncDone := make(chan error, 1)
	go func() {
		syncDone <- synchronizer.Run(ctx)
	}()

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	referenceHandler := handler.NewReferenceHandler(resolver, snapshots, snapshots, log)
	router.NewRouter(engine).Register(referenceHandler).Setup()
	handler.NewHealthHandler().Register(engine)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal or consumer failure
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-syncDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event consumer failed", zap.Error(err))
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Meter provider shutdown failed", zap.Error(err))
	}

	log.Info("Reference cache service stopped")
}
