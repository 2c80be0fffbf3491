// Package handler provides HTTP handlers for the LungBuddy API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/lungbuddy/lungbuddy/internal/api/models"
	"github.com/lungbuddy/lungbuddy/internal/api/response"
	"github.com/lungbuddy/lungbuddy/internal/featureflags"
	"github.com/lungbuddy/lungbuddy/internal/provider/resilience"
)

// readyTimeout bounds each dependency ping in readiness checks.
const readyTimeout = 2 * time.Second

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds the dependencies of the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Dependencies are pinged by the readiness check, keyed by subsystem name.
	Dependencies map[string]Pinger

	// Providers reports external provider health. Optional.
	Providers *resilience.Registry

	// Flags reports active degradation flags. Optional.
	Flags *featureflags.Service
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. It fails with
// 503 when any dependency cannot be reached.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.pingAll(r.Context())

	status := models.HealthStatusOK
	details := make(map[string]interface{}, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status != models.HealthStatusOK {
			status = models.HealthStatusFail
		}
	}

	code := http.StatusOK
	if status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}

	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Version:    h.cfg.Version,
		Subsystems: h.pingAll(r.Context()),
		Providers:  h.providerStatuses(),
	}

	for _, s := range status.Subsystems {
		if s.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusFail
		}
	}
	for _, p := range status.Providers {
		if p.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	if h.cfg.Flags != nil {
		status.ActiveDegradationFlags = activeDegradationFlags(r.Context(), h.cfg.Flags)
		if len(status.ActiveDegradationFlags) > 0 && status.Status == models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) pingAll(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.cfg.Dependencies))
	for name := range h.cfg.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		err := h.cfg.Dependencies[name].Ping(pingCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.cfg.Providers == nil {
		return []models.ProviderStatus{}
	}

	all := h.cfg.Providers.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		ps := models.ProviderStatus{
			Provider:            ph.Name,
			Status:              models.HealthStatusOK,
			CircuitState:        ph.CircuitState.String(),
			ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
			LastSuccessAt:       models.TimestampPtr(ph.LastSuccessAt),
			LastFailureAt:       models.TimestampPtr(ph.LastFailureAt),
		}
		switch {
		case ph.IsUnhealthy():
			ps.Status = models.HealthStatusFail
		case ph.IsDegraded():
			ps.Status = models.HealthStatusDegraded
		}
		if ph.LastError != "" {
			msg := ph.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

func activeDegradationFlags(ctx context.Context, flags *featureflags.Service) []string {
	var active []string
	if flags.IsCachedOnlyAirQuality(ctx) {
		active = append(active, featureflags.FlagCachedOnlyAirQuality)
	}
	if flags.AreSubmissionsDisabled(ctx) {
		active = append(active, featureflags.FlagDisableSubmissions)
	}
	if !flags.IsAIAdviceEnabled(ctx) {
		active = append(active, featureflags.FlagAIAdvice)
	}
	if !flags.IsRoomInsightsEnabled(ctx) {
		active = append(active, featureflags.FlagRoomInsights)
	}
	return active
}
