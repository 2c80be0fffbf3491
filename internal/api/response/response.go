// Package response writes JSON bodies and RFC 7807 problems for handlers.
package response

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/lungbuddy/lungbuddy/internal/api/middleware"
	"github.com/lungbuddy/lungbuddy/internal/api/models"
)

// JSON writes data as JSON with the given status. A nil data writes only
// the status line and headers.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	write(w, r, status, "", data)
}

// Created writes a 201 with an optional Location header.
func Created(w http.ResponseWriter, r *http.Request, location string, data interface{}) {
	write(w, r, http.StatusCreated, location, data)
}

// NoContent writes a 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func write(w http.ResponseWriter, r *http.Request, status int, location string, data interface{}) {
	setRequestID(w, r)
	h := w.Header()
	if data != nil {
		h.Set("Content-Type", "application/json")
	}
	if location != "" {
		h.Set("Location", location)
	}
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
}

// Error writes problem, stamping the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// Problem writes the standard problem for status.
func Problem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	Error(w, r, models.NewStatusProblem(status, middleware.GetRequestID(r.Context()), detail))
}

// BadRequest writes a 400 validation problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusUnauthorized, detail)
}

// Forbidden writes a 403.
func Forbidden(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusForbidden, detail)
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusNotFound, detail)
}

// TooManyRequests writes a 429. A positive retryAfter is sent as
// Retry-After in whole seconds, rounded up.
func TooManyRequests(w http.ResponseWriter, r *http.Request, detail string, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	Problem(w, r, http.StatusTooManyRequests, detail)
}

// InternalError writes a 500. detail must not leak internals.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusInternalServerError, detail)
}

// ServiceUnavailable writes a 503.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusServiceUnavailable, detail)
}
