package handler

import (
	"context"
	"net/http"

	"github.com/lungbuddy/lungbuddy/internal/api/middleware"
	"github.com/lungbuddy/lungbuddy/internal/api/response"
	"github.com/lungbuddy/lungbuddy/internal/auth"
)

// GetUserID returns the authenticated user's ID from the request context.
func GetUserID(ctx context.Context) string {
	return middleware.GetUserID(ctx)
}

// requirePrincipal returns the caller's principal, writing a 401 and
// returning false when the request is anonymous.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		response.Unauthorized(w, r, "authentication required")
		return nil, false
	}
	return p, true
}

// displayName returns the requested display name, falling back to the name
// carried by the caller's token.
func displayName(r *http.Request, requested string) string {
	if requested != "" {
		return requested
	}
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		return p.DisplayName
	}
	return ""
}
