package handler

import (
	"net/http"
	"strconv"

	"github.com/lungbuddy/lungbuddy/internal/airquality"
	"github.com/lungbuddy/lungbuddy/internal/api/models"
	"github.com/lungbuddy/lungbuddy/internal/api/response"
)

// AirQualityHandler handles air quality lookups.
type AirQualityHandler struct {
	service *airquality.Service
}

// NewAirQualityHandler creates a new AirQualityHandler.
func NewAirQualityHandler(service *airquality.Service) *AirQualityHandler {
	return &AirQualityHandler{service: service}
}

// GetAirQuality handles GET /v1/air-quality?city= or ?lat=&lon=.
func (h *AirQualityHandler) GetAirQuality(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		reading *airquality.Reading
		err     error
	)

	switch {
	case q.Get("city") != "":
		reading, err = h.service.Lookup(r.Context(), q.Get("city"))
	case q.Get("lat") != "" || q.Get("lon") != "":
		lat, lon, fieldErrs := parseCoordinates(q.Get("lat"), q.Get("lon"))
		if len(fieldErrs) > 0 {
			response.BadRequest(w, r, "invalid coordinates", fieldErrs)
			return
		}
		reading, err = h.service.LookupAt(r.Context(), lat, lon)
	default:
		response.BadRequest(w, r, "city or lat/lon is required", []models.FieldError{
			{Field: "city", Message: "city is required when lat/lon are not given", Code: "REQUIRED"},
		})
		return
	}

	if err != nil {
		writeError(w, r, err)
		return
	}

	if reading.Stale {
		w.Header().Set("Warning", `110 - "Response is Stale"`)
	}
	response.JSON(w, r, http.StatusOK, reading)
}

// SuggestCities handles GET /v1/air-quality/suggestions?q=.
func (h *AirQualityHandler) SuggestCities(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"items": locations,
	})
}

func parseCoordinates(latStr, lonStr string) (float64, float64, []models.FieldError) {
	var errs []models.FieldError

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		errs = append(errs, models.FieldError{Field: "lat", Message: "lat must be between -90 and 90", Code: "OUT_OF_RANGE"})
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		errs = append(errs, models.FieldError{Field: "lon", Message: "lon must be between -180 and 180", Code: "OUT_OF_RANGE"})
	}

	return lat, lon, errs
}
