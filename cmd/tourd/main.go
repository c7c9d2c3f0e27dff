// Package main provides the entrypoint for the waypointd tour daemon.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/wanderly/waypointd/internal/api"
	"github.com/wanderly/waypointd/internal/api/middleware"
	"github.com/wanderly/waypointd/internal/api/models"
	"github.com/wanderly/waypointd/internal/database"
	"github.com/wanderly/waypointd/internal/ingest"
	"github.com/wanderly/waypointd/internal/location"
	"github.com/wanderly/waypointd/internal/narration"
	"github.com/wanderly/waypointd/internal/progress"
	"github.com/wanderly/waypointd/internal/scheduler"
	"github.com/wanderly/waypointd/internal/telemetry"
	"github.com/wanderly/waypointd/internal/tour"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "waypointd"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting waypointd")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize http metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	schedMetrics, err := scheduler.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize scheduler metrics")
		os.Exit(1)
	}
	speakerMetrics, err := narration.NewSpeakerMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize speaker metrics")
		os.Exit(1)
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	catalog := tour.NewPostgresRepository(pool)

	// Progress lives in Postgres by default; PROGRESS_BACKEND=file keeps
	// it in per-route JSON files instead, for single-box deployments.
	var progressRepo progress.Repository
	if os.Getenv("PROGRESS_BACKEND") == "file" {
		dir := os.Getenv("PROGRESS_DIR")
		if dir == "" {
			dir = "/var/lib/waypointd/progress"
		}
		fileRepo, err := progress.NewFileRepository(dir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to open progress directory")
		}
		progressRepo = fileRepo
		log.Info().Str("dir", dir).Msg("using file-backed progress store")
	} else {
		progressRepo = progress.NewPostgresRepository(pool)
	}

	// Narration pace for the log speaker; a real audio backend would
	// replace this behind the same interface.
	wordsPerMinute := 150

	manager := scheduler.NewManager(scheduler.ManagerConfig{
		Catalog:      catalog,
		ProgressRepo: progressRepo,
		NewSource: func() location.PushSource {
			return location.NewSimSource(location.SimSourceConfig{Logger: log})
		},
		NewSpeaker: func() narration.Speaker {
			return narration.NewBreakerSpeaker(
				narration.NewLogSpeaker(narration.LogSpeakerConfig{
					WordsPerMinute: wordsPerMinute,
					Logger:         log,
				}),
				narration.BreakerConfig{Logger: log, Metrics: speakerMetrics},
			)
		},
		Logger:  log,
		Metrics: schedMetrics,
	})
	defer manager.StopAll()
	log.Info().Msg("traversal manager initialized")

	// Optional Pub/Sub ingest for device location fixes
	ingestCtx, cancelIngest := context.WithCancel(ctx)
	defer cancelIngest()
	if sub := os.Getenv("PUBSUB_SUBSCRIPTION"); sub != "" {
		handler, err := ingest.NewPubSubHandler(ingestCtx, ingest.PubSubConfig{
			ProjectID:        os.Getenv("PUBSUB_PROJECT_ID"),
			SubscriptionName: sub,
			Manager:          manager,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pubsub ingest")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ingestCtx); err != nil && ingestCtx.Err() == nil {
				log.Error().Err(err).Msg("pubsub ingest stopped")
			}
		}()
		log.Info().Str("subscription", sub).Msg("pubsub ingest started")
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		Manager:     manager,
		Readiness: func() []models.SubsystemStatus {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			dbStatus := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
			if err := pool.Ping(pingCtx); err != nil {
				detail := err.Error()
				dbStatus.Status = models.HealthStatusFail
				dbStatus.Detail = &detail
			}
			return []models.SubsystemStatus{dbStatus}
		},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	// Stop taking new fixes, then stop traversals so progress persists.
	cancelIngest()
	manager.StopAll()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
