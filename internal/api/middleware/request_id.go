// Package middleware holds the HTTP middleware chain of the LungBuddy API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDPrefix = "req_"

	// maxRequestIDLength bounds IDs accepted from clients.
	maxRequestIDLength = 128
)

type requestIDKey struct{}

// RequestID stores a request ID in the context and echoes it in the
// X-Request-Id response header. A client ID is reused when it is short and
// made of [A-Za-z0-9._:-]; otherwise a new req_ ID is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !validRequestID(id) {
			id = NewRequestID()
		}

		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// NewRequestID returns a fresh req_ prefixed ID.
func NewRequestID() string {
	return requestIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID returns the request ID from ctx, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	return strings.IndexFunc(id, func(c rune) bool {
		return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '-' || c == '_' || c == '.' || c == ':')
	}) < 0
}
