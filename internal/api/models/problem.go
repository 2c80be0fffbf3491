package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at one invalid questionnaire or request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://api.lungbuddy.app/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation       = problemBase + "validation-error"
	ProblemTypeUnauthorized     = problemBase + "unauthorized"
	ProblemTypeForbidden        = problemBase + "forbidden"
	ProblemTypeNotFound         = problemBase + "not-found"
	ProblemTypeMethodNotAllowed = problemBase + "method-not-allowed"
	ProblemTypeConflict         = problemBase + "conflict"
	ProblemTypeMediaType        = problemBase + "unsupported-media-type"
	ProblemTypeTooManyRequests  = problemBase + "too-many-requests"
	ProblemTypeInternal         = problemBase + "internal-error"
	ProblemTypeUnavailable      = problemBase + "service-unavailable"
	ProblemTypeTLSRequired      = problemBase + "tls-required"
)

var statusProblems = map[int]struct{ typ, title string }{
	http.StatusBadRequest:           {ProblemTypeValidation, "Validation error"},
	http.StatusUnauthorized:         {ProblemTypeUnauthorized, "Unauthorized"},
	http.StatusForbidden:            {ProblemTypeForbidden, "Forbidden"},
	http.StatusNotFound:             {ProblemTypeNotFound, "Not found"},
	http.StatusMethodNotAllowed:     {ProblemTypeMethodNotAllowed, "Method not allowed"},
	http.StatusConflict:             {ProblemTypeConflict, "Conflict"},
	http.StatusUnsupportedMediaType: {ProblemTypeMediaType, "Unsupported media type"},
	http.StatusTooManyRequests:      {ProblemTypeTooManyRequests, "Too many requests"},
	http.StatusInternalServerError:  {ProblemTypeInternal, "Internal server error"},
	http.StatusServiceUnavailable:   {ProblemTypeUnavailable, "Service unavailable"},
}

// NewProblem creates a Problem of an explicit type.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// NewStatusProblem creates the standard Problem for an HTTP status.
// Statuses without a registered type fall back to about:blank and the
// status text, as RFC 7807 allows.
func NewStatusProblem(status int, traceID, detail string) *Problem {
	kind, ok := statusProblems[status]
	if !ok {
		kind.typ, kind.title = "about:blank", http.StatusText(status)
	}
	p := NewProblem(kind.typ, kind.title, status, traceID)
	p.Detail = detail
	return p
}

// NewBadRequest creates a 400 validation Problem listing the invalid fields.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := NewStatusProblem(http.StatusBadRequest, traceID, detail)
	p.Errors = errors
	return p
}

// Write sends the Problem with its status. The trace ID doubles as the
// X-Request-Id header.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
