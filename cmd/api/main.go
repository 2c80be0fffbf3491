// Package main provides the entrypoint for the LungBuddy API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/advice"
	"github.com/lungbuddy/lungbuddy/internal/advice/groq"
	"github.com/lungbuddy/lungbuddy/internal/airquality"
	"github.com/lungbuddy/lungbuddy/internal/airquality/openweathermap"
	"github.com/lungbuddy/lungbuddy/internal/api"
	"github.com/lungbuddy/lungbuddy/internal/api/handler"
	"github.com/lungbuddy/lungbuddy/internal/api/middleware"
	"github.com/lungbuddy/lungbuddy/internal/assessment"
	"github.com/lungbuddy/lungbuddy/internal/auth"
	"github.com/lungbuddy/lungbuddy/internal/cache"
	"github.com/lungbuddy/lungbuddy/internal/database"
	"github.com/lungbuddy/lungbuddy/internal/events"
	"github.com/lungbuddy/lungbuddy/internal/featureflags"
	"github.com/lungbuddy/lungbuddy/internal/leaderboard"
	"github.com/lungbuddy/lungbuddy/internal/provider/resilience"
	"github.com/lungbuddy/lungbuddy/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "lungbuddy-api"

func main() {
	envErr := godotenv.Load()

	log := newLogger()
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn().Err(envErr).Msg("failed to load .env file")
	}

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting LungBuddy API")

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("api stopped with error")
	}
	log.Info().Msg("server stopped")
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
	ctx := context.Background()
	port := getEnvOrDefault("APP_PORT", "8080")

	// Initialize OpenTelemetry
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
		log.Info().Str("otlp_endpoint", otelCfg.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	// Prometheus registry for /metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics, err := middleware.NewMetrics(registry)
	if err != nil {
		return err
	}

	dependencies := map[string]handler.Pinger{}

	// Cache
	store := cache.New(cache.ConfigFromEnv(), log)
	dependencies["cache"] = store

	// Storage
	var (
		roomRepo leaderboard.Repository  = leaderboard.NewInMemoryRepository()
		flagRepo featureflags.Repository = featureflags.NewInMemoryRepository()
		pool     *pgxpool.Pool
	)
	if getEnvOrDefault("LEADERBOARD_STORE", "memory") == "postgres" {
		pool, err = connectDatabase(ctx, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		roomRepo = leaderboard.NewPostgresRepository(pool)
		flagRepo = featureflags.NewPostgresRepository(pool)
		dependencies["database"] = pool
	} else {
		log.Warn().Msg("using in-memory leaderboard store - data is lost on restart")
	}

	// Feature flags
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

	// Auth
	authService, err := newAuthService(ctx, log)
	if err != nil {
		return err
	}

	// Events
	publisher, err := newPublisher(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close publisher")
		}
	}()

	// Advice (rules plus optional Groq)
	adviceService := advice.NewService(advice.ServiceConfig{
		Generator: newGenerator(log, providers),
		Cache:     store,
		Flags:     flags,
		Logger:    log,
	})

	assessmentService := assessment.NewService(assessment.ServiceConfig{
		Metrics: assessment.NewMetrics(registry),
		Advisor: adviceService,
		Flags:   flags,
		Logger:  log,
	})

	location, err := time.LoadLocation(getEnvOrDefault("LEADERBOARD_TIMEZONE", "UTC"))
	if err != nil {
		return err
	}
	leaderboardService := leaderboard.NewService(leaderboard.ServiceConfig{
		Repository: roomRepo,
		Publisher:  publisher,
		Flags:      flags,
		Logger:     log,
		Location:   location,
	})

	// Air quality
	owmKey := os.Getenv("OPENWEATHERMAP_API_KEY")
	if owmKey == "" {
		log.Warn().Msg("OPENWEATHERMAP_API_KEY not set - air quality lookups will fail")
	}
	airQualityService := airquality.NewService(airquality.ServiceConfig{
		Provider: openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:   owmKey,
			Registry: providers,
		}),
		Cache:  store,
		Flags:  flags,
		Logger: log,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            httpMetrics,
		Gatherer:           registry,
		MetricsUsername:    getEnvOrDefault("METRICS_USERNAME", "ops"),
		MetricsPassword:    os.Getenv("METRICS_PASSWORD"),
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",
		AuthService:        authService,
		AssessmentService:  assessmentService,
		LeaderboardService: leaderboardService,
		AirQualityService:  airQualityService,
		AdviceService:      adviceService,
		FeatureFlagService: flags,
		Dependencies:       dependencies,
		ProviderRegistry:   providers,
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func connectDatabase(ctx context.Context, log zerolog.Logger) (*pgxpool.Pool, error) {
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	if err := database.Migrate(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func newAuthService(ctx context.Context, log zerolog.Logger) (*auth.Service, error) {
	signingKey := os.Getenv("JWT_SECRET")
	if signingKey == "" {
		if getEnvOrDefault("APP_ENV", "development") != "development" {
			return nil, errors.New("JWT_SECRET is required outside development")
		}
		signingKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	cfg := auth.ServiceConfig{
		Tokens: auth.NewGuestTokens(auth.TokenConfig{
			SigningKey: signingKey,
			Issuer:     "https://api.lungbuddy.app",
			Audience:   "lungbuddy-api",
		}),
		Logger: log,
	}

	if projectID := os.Getenv("FIREBASE_PROJECT_ID"); projectID != "" {
		verifier, err := auth.NewFirebaseVerifier(ctx, auth.FirebaseConfig{
			ProjectID:       projectID,
			CredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		})
		if err != nil {
			return nil, err
		}
		cfg.Verifier = verifier
		log.Info().Str("project_id", projectID).Msg("Firebase ID tokens enabled")
	} else {
		log.Info().Msg("Firebase not configured - guest sessions only")
	}

	return auth.NewService(cfg), nil
}

type publisher interface {
	leaderboard.Publisher
	Close() error
}

func newPublisher(ctx context.Context, log zerolog.Logger) (publisher, error) {
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	topic := os.Getenv("PUBSUB_TOPIC")
	if projectID == "" || topic == "" {
		log.Info().Msg("Pub/Sub not configured - events are logged only")
		return events.NewLogPublisher(log), nil
	}

	p, err := events.NewPubSubPublisher(ctx, events.PubSubConfig{
		ProjectID: projectID,
		Topic:     topic,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("topic", topic).Msg("publishing events to Pub/Sub")
	return p, nil
}

func newGenerator(log zerolog.Logger, providers *resilience.Registry) advice.Generator {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		log.Info().Msg("GROQ_API_KEY not set - using rule-based advice only")
		return nil
	}
	return groq.NewClient(groq.ClientConfig{
		APIKey:   apiKey,
		Model:    os.Getenv("GROQ_MODEL"),
		Registry: providers,
		Logger:   log,
	})
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
