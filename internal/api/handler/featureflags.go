package handler

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/api/models"
	"github.com/lungbuddy/lungbuddy/internal/api/response"
	"github.com/lungbuddy/lungbuddy/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service}
}

// ListFeatureFlags handles GET /v1/feature-flags and /v1/admin/feature-flags - list all feature flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, sortedFlags(h.service.GetAllFlags(r.Context())))
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags - update feature flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := validateFlagUpdates(&req); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	flags := make([]*featureflags.Flag, len(req.Updates))
	keys := make([]string, len(req.Updates))
	for i, u := range req.Updates {
		flags[i] = &featureflags.Flag{Key: u.Key, Value: u.Value}
		keys[i] = u.Key
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		writeError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Strs("keys", keys).
		Str("reason", req.Reason).
		Msg("feature flags updated")

	response.JSON(w, r, http.StatusOK, sortedFlags(h.service.GetAllFlags(r.Context())))
}

// ResetFeatureFlag handles DELETE /v1/admin/feature-flags/{key} - drop an
// override so the default value applies.
func (h *FeatureFlagsHandler) ResetFeatureFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, ok := featureflags.Lookup(key); !ok {
		response.NotFound(w, r, "unknown feature flag "+key)
		return
	}

	if err := h.service.ResetFlag(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("key", key).Msg("feature flag reset to default")
	response.JSON(w, r, http.StatusOK, sortedFlags(h.service.GetAllFlags(r.Context())))
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate - invalidate flag cache.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}

func validateFlagUpdates(req *featureflags.FlagUpdateRequest) []models.FieldError {
	var errs []models.FieldError
	if len(req.Updates) == 0 {
		errs = append(errs, models.FieldError{Field: "updates", Message: "at least one update is required", Code: "REQUIRED"})
	}
	if req.Reason == "" {
		errs = append(errs, models.FieldError{Field: "reason", Message: "reason is required", Code: "REQUIRED"})
	}

	for i, u := range req.Updates {
		err := u.Validate()
		switch {
		case errors.Is(err, featureflags.ErrUnknownFlag):
			errs = append(errs, models.FieldError{Field: fmt.Sprintf("updates[%d].key", i), Message: "unknown flag key", Code: "UNKNOWN_FLAG"})
		case err != nil:
			errs = append(errs, models.FieldError{Field: fmt.Sprintf("updates[%d].value", i), Message: err.Error(), Code: "INVALID_TYPE"})
		}
	}
	return errs
}

func sortedFlags(all map[string]*featureflags.Flag) featureflags.FlagList {
	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(all))}
	for _, f := range all {
		list.Items = append(list.Items, *f)
	}
	sort.Slice(list.Items, func(i, j int) bool { return list.Items[i].Key < list.Items[j].Key })
	return list
}
