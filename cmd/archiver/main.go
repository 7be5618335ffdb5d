// Command archiver consumes flight lifecycle events and persists them to the
// durable ingestion ledger, deduplicating redeliveries along the way.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/application/archive"
	"github.com/flightdeck/backend/internal/domain/shared"
	"github.com/flightdeck/backend/internal/infrastructure/cache"
	"github.com/flightdeck/backend/internal/infrastructure/config"
	"github.com/flightdeck/backend/internal/infrastructure/eventbus"
	"github.com/flightdeck/backend/internal/infrastructure/logger"
	"github.com/flightdeck/backend/internal/infrastructure/persistence"
	"github.com/flightdeck/backend/internal/infrastructure/telemetry"
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

	log.Info("Starting ingestion archiver",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("topic", cfg.Kafka.FlightTopic),
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

	// Database connection with zap-backed GORM logging
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Telemetry.Enabled {
		if err := db.DB.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.Database.DBName))); err != nil {
			log.Error("Failed to enable database tracing", zap.Error(err))
		}
	}

	repo := persistence.NewGormIngestionRecordRepository(db.DB)

	// Fast-path dedup store: Redis, with optional in-memory fallback
	dedupFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithFactoryLogger(log),
		cache.WithInMemoryFallback(cfg.Ledger.AllowInMemoryFallback),
	)
	dedup, err := dedupFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create dedup store", zap.Error(err))
	}

	ledger := archive.NewLedger(repo, dedup, log, archive.WithDedupConfig(shared.IdempotencyConfig{
		TTL:     cfg.Ledger.DedupTTL,
		Enabled: true,
	}))
	defer ledger.Close()

	consumerMetrics, err := telemetry.NewConsumerMetrics(telemetry.ConsumerMetricsConfig{
		Meter:  meterProvider.Meter("archiver"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to initialize consumer metrics", zap.Error(err))
	}
	defer consumerMetrics.Stop()

	subscription := eventbus.NewKafkaSubscription(eventbus.KafkaConfig{
		Brokers:     cfg.Kafka.Brokers,
		StartOffset: cfg.Kafka.StartOffset,
		MaxWait:     cfg.Kafka.MaxWait,
	}, cfg.Kafka.FlightTopic, cfg.Kafka.GroupID)
	defer subscription.Close()

	consumer := archive.NewConsumer(subscription, ledger, log,
		archive.WithConsumerMetrics(consumerMetrics))

	err = consumer.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if shutdownErr := tracerProvider.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error("Tracer provider shutdown failed", zap.Error(shutdownErr))
	}
	if shutdownErr := meterProvider.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error("Meter provider shutdown failed", zap.Error(shutdownErr))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Archiver stopped with error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
	log.Info("Ingestion archiver stopped")
}
