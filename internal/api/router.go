// Package api provides the HTTP API for LungBuddy.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/advice"
	"github.com/lungbuddy/lungbuddy/internal/airquality"
	"github.com/lungbuddy/lungbuddy/internal/api/handler"
	"github.com/lungbuddy/lungbuddy/internal/api/middleware"
	"github.com/lungbuddy/lungbuddy/internal/api/response"
	"github.com/lungbuddy/lungbuddy/internal/assessment"
	"github.com/lungbuddy/lungbuddy/internal/auth"
	"github.com/lungbuddy/lungbuddy/internal/featureflags"
	"github.com/lungbuddy/lungbuddy/internal/leaderboard"
	"github.com/lungbuddy/lungbuddy/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics records HTTP metrics. Optional.
	Metrics *middleware.Metrics

	// Gatherer is served on /metrics behind basic auth. Optional.
	Gatherer        prometheus.Gatherer
	MetricsUsername string
	MetricsPassword string

	// RequireTLS rejects plain HTTP requests forwarded by the load balancer.
	RequireTLS bool

	AuthService        *auth.Service
	AssessmentService  *assessment.Service
	LeaderboardService *leaderboard.Service
	AirQualityService  *airquality.Service
	AdviceService      *advice.Service
	FeatureFlagService *featureflags.Service

	// Dependencies are pinged by the readiness check.
	Dependencies map[string]handler.Pinger

	// ProviderRegistry reports external provider health on /v1/ops/status.
	ProviderRegistry *resilience.Registry
}

// NewRouter builds the HTTP handler tree. Request IDs are assigned before
// tracing so spans and logs share them; recovery sits inside logging so
// panics are logged as 500s.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "lungbuddy-api"
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Tracing(cfg.ServiceName),
		cfg.Metrics.Middleware(),
		middleware.Logger(cfg.Logger),
		middleware.Recovery(cfg.Logger),
		chimiddleware.RealIP,
		middleware.SecurityHeaders,
		middleware.RequireTLS(cfg.RequireTLS),
		middleware.ContentTypeJSON,
	)

	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:      cfg.Version,
		BuildTime:    cfg.BuildTime,
		Dependencies: cfg.Dependencies,
		Providers:    cfg.ProviderRegistry,
		Flags:        cfg.FeatureFlagService,
	})
	authH := handler.NewAuthHandler(cfg.AuthService)
	assessments := handler.NewAssessmentHandler(cfg.AssessmentService)
	airQuality := handler.NewAirQualityHandler(cfg.AirQualityService)
	rooms := handler.NewRoomHandler(cfg.LeaderboardService, cfg.AssessmentService, cfg.AdviceService)
	flags := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService)

	requireUser := middleware.Auth(cfg.AuthService)
	requireOperator := middleware.BasicAuth("lungbuddy-ops", cfg.MetricsUsername, cfg.MetricsPassword)
	authLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)
	standardLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	expensiveLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)

	if cfg.Gatherer != nil {
		r.With(requireOperator).Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireJSON)

		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimit)
			r.Post("/guest", authH.CreateGuest)
			r.With(requireUser).Get("/me", authH.Me)
		})

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", ops.HealthCheck)
			r.Get("/ready", ops.ReadinessCheck)
			r.With(requireOperator).Get("/status", ops.SystemStatus)
		})

		// Batches and AI-backed reports draw on the expensive budget.
		r.Route("/assessments", func(r chi.Router) {
			r.With(standardLimit).Post("/", assessments.Compute)
			r.With(expensiveLimit).Post("/batch", assessments.ComputeBatch)
			r.With(expensiveLimit).Post("/report", assessments.Report)
		})
		r.With(standardLimit).Post("/projections", assessments.Project)

		r.Route("/air-quality", func(r chi.Router) {
			r.Use(standardLimit)
			r.Get("/", airQuality.GetAirQuality)
			r.Get("/suggestions", airQuality.SuggestCities)
		})

		r.Route("/rooms", func(r chi.Router) {
			r.Use(requireUser, middleware.RateLimitByUser(middleware.StandardRateLimit))
			r.Get("/", rooms.ListRooms)
			r.Post("/", rooms.CreateRoom)
			r.Post("/join", rooms.JoinRoom)
			r.Route("/{roomId}", func(r chi.Router) {
				r.Get("/", rooms.GetRoom)
				r.Get("/submissions", rooms.ListSubmissions)
				r.Post("/submissions", rooms.SubmitScore)
				r.With(middleware.RateLimitByUser(middleware.AIRateLimit)).Get("/insights", rooms.GetInsights)
			})
		})

		r.With(standardLimit).Get("/feature-flags", flags.ListFeatureFlags)

		r.Route("/admin/feature-flags", func(r chi.Router) {
			r.Use(requireOperator)
			r.Get("/", flags.ListFeatureFlags)
			r.Put("/", flags.UpsertFeatureFlags)
			r.Delete("/{key}", flags.ResetFeatureFlag)
			r.Post("/invalidate", flags.InvalidateCache)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route matches "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Problem(w, r, http.StatusMethodNotAllowed, r.Method+" is not supported on "+r.URL.Path)
	})

	return r
}
