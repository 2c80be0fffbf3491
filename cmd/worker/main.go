// Package main provides the entrypoint for the LungBuddy background worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/advice"
	"github.com/lungbuddy/lungbuddy/internal/advice/groq"
	"github.com/lungbuddy/lungbuddy/internal/airquality"
	"github.com/lungbuddy/lungbuddy/internal/airquality/openweathermap"
	"github.com/lungbuddy/lungbuddy/internal/api/middleware"
	"github.com/lungbuddy/lungbuddy/internal/api/response"
	"github.com/lungbuddy/lungbuddy/internal/cache"
	"github.com/lungbuddy/lungbuddy/internal/database"
	"github.com/lungbuddy/lungbuddy/internal/featureflags"
	"github.com/lungbuddy/lungbuddy/internal/leaderboard"
	"github.com/lungbuddy/lungbuddy/internal/provider/resilience"
	"github.com/lungbuddy/lungbuddy/internal/telemetry"
	"github.com/lungbuddy/lungbuddy/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "lungbuddy-worker"

func main() {
	envErr := godotenv.Load()

	log := newLogger()
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn().Err(envErr).Msg("failed to load .env file")
	}

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting LungBuddy worker")

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("worker stopped with error")
	}
	log.Info().Msg("worker stopped")
}

func newLogger() zerolog.Logger {
	var log zerolog.Logger
	if getEnvOrDefault("APP_ENV", "development") == "development" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stdout)
	}
	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		log = log.Level(level)
	}

	return log.With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
}

func run(log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := worker.ConfigFromEnv()

	otelCfg := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, otelCfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	providers := resilience.NewRegistry()
	if otelCfg.Enabled {
		if _, err := telemetry.RegisterProviderHealth(tp.Meter, providers); err != nil {
			log.Warn().Err(err).Msg("failed to register provider health metrics")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := worker.NewMetrics(registry)

	store := cache.New(cache.ConfigFromEnv(), log)

	// The worker shares the API's room store. With the in-memory store it
	// only warms the AQI cache.
	var (
		roomRepo leaderboard.Repository  = leaderboard.NewInMemoryRepository()
		flagRepo featureflags.Repository = featureflags.NewInMemoryRepository()
	)
	if getEnvOrDefault("LEADERBOARD_STORE", "memory") == "postgres" {
		pool, err := database.Connect(ctx, database.ConfigFromEnv())
		if err != nil {
			return err
		}
		defer pool.Close()
		roomRepo = leaderboard.NewPostgresRepository(pool)
		flagRepo = featureflags.NewPostgresRepository(pool)
		log.Info().Msg("database connected")
	}

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

	airQualityService := airquality.NewService(airquality.ServiceConfig{
		Provider: openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:   os.Getenv("OPENWEATHERMAP_API_KEY"),
			Registry: providers,
		}),
		Cache:  store,
		Flags:  flags,
		Logger: log,
	})

	var generator advice.Generator
	if apiKey := os.Getenv("GROQ_API_KEY"); apiKey != "" {
		generator = groq.NewClient(groq.ClientConfig{
			APIKey:   apiKey,
			Model:    os.Getenv("GROQ_MODEL"),
			Registry: providers,
			Logger:   log,
		})
	}
	adviceService := advice.NewService(advice.ServiceConfig{
		Generator: generator,
		Cache:     store,
		Flags:     flags,
		Logger:    log,
	})

	location, err := time.LoadLocation(getEnvOrDefault("LEADERBOARD_TIMEZONE", "UTC"))
	if err != nil {
		return err
	}
	leaderboardService := leaderboard.NewService(leaderboard.ServiceConfig{
		Repository: roomRepo,
		Flags:      flags,
		Logger:     log,
		Location:   location,
	})

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    cfg,
		Logger:    log.With().Str("job", worker.JobAQIRefresh).Logger(),
		Refresher: airQualityService,
		Metrics:   metrics,
	})
	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		RefreshJob:  refreshJob,
		InsightsJob: worker.NewInsightsJob(leaderboardService, adviceService, log),
		Metrics:     metrics,
		Logger:      log,
	})

	// Cron schedule for AQI warm-up
	scheduler, err := worker.NewScheduler(ctx, cfg.AQISchedule, refreshJob, log)
	if err != nil {
		return err
	}
	scheduler.Start()
	go refreshJob.Run(ctx)

	// Pub/Sub job subscription
	var subscriber *worker.PubSubHandler
	if cfg.PubSubEnabled() {
		subscriber, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.ProjectID,
			SubscriptionName: cfg.Subscription,
			Dispatcher:       dispatcher,
			Logger:           log,
		})
		if err != nil {
			return err
		}
		go func() {
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Warn().Msg("Pub/Sub subscription not configured - running scheduled jobs only")
	}

	// Health server for the platform's liveness probe
	server := &http.Server{
		Addr:              ":" + getEnvOrDefault("APP_PORT", "8080"),
		Handler:           healthRouter(refreshJob, registry),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err = <-serverErr:
	case <-quit:
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	scheduler.Stop(shutdownCtx)
	if subscriber != nil {
		if closeErr := subscriber.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close pubsub client")
		}
	}
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("health server forced to shutdown")
	}
	return err
}

func healthRouter(job *worker.RefreshJob, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ContentTypeJSON)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"refresh": job.StatsSnapshot(),
		})
	})

	operatorAuth := middleware.BasicAuth("lungbuddy-ops",
		getEnvOrDefault("METRICS_USERNAME", "ops"), os.Getenv("METRICS_PASSWORD"))
	r.With(operatorAuth).Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
