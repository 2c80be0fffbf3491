package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/advice"
	"github.com/lungbuddy/lungbuddy/internal/airquality"
	"github.com/lungbuddy/lungbuddy/internal/api/response"
	"github.com/lungbuddy/lungbuddy/internal/assessment"
	"github.com/lungbuddy/lungbuddy/internal/auth"
	"github.com/lungbuddy/lungbuddy/internal/leaderboard"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON decodes a JSON request body. It writes a 400 problem and returns
// false when the body is missing or malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			response.BadRequest(w, r, "request body is required", nil)
		} else {
			response.BadRequest(w, r, "invalid JSON body", nil)
		}
		return false
	}
	return true
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		lbValidation   *leaderboard.ValidationError
		authValidation *auth.ValidationError
		cooldown       *leaderboard.CooldownError
	)

	switch {
	case errors.As(err, &lbValidation):
		response.BadRequest(w, r, "validation error", lbValidation.Errors)
	case errors.As(err, &authValidation):
		response.BadRequest(w, r, "validation error", authValidation.Errors)
	case errors.As(err, &cooldown):
		response.TooManyRequests(w, r, cooldown.Error(), cooldown.Remaining)

	case errors.Is(err, assessment.ErrEmptyBatch), errors.Is(err, assessment.ErrBatchTooLarge):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, airquality.ErrInvalidCity):
		response.BadRequest(w, r, err.Error(), nil)

	case errors.Is(err, leaderboard.ErrNotMember):
		response.Forbidden(w, r, err.Error())
	case errors.Is(err, leaderboard.ErrRoomNotFound):
		response.NotFound(w, r, "room not found")
	case errors.Is(err, airquality.ErrCityNotFound):
		response.NotFound(w, r, "city not found")
	case errors.Is(err, airquality.ErrNoData):
		response.NotFound(w, r, "no air quality data for this location")

	case errors.Is(err, leaderboard.ErrSubmissionsDisabled):
		response.ServiceUnavailable(w, r, err.Error())
	case errors.Is(err, airquality.ErrNoCachedData):
		response.ServiceUnavailable(w, r, "air quality is served from cache only and no cached value exists")
	case errors.Is(err, airquality.ErrProviderUnavailable):
		response.ServiceUnavailable(w, r, "air quality provider unavailable")
	case errors.Is(err, advice.ErrAIDisabled):
		response.ServiceUnavailable(w, r, "AI insights are disabled")
	case errors.Is(err, advice.ErrInvalidResponse):
		response.ServiceUnavailable(w, r, "AI insights are temporarily unavailable")

	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
