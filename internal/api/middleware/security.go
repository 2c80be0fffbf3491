package middleware

import (
	"net/http"

	"github.com/lungbuddy/lungbuddy/internal/api/models"
)

// securityHeaders are set on every API response. The API serves JSON only,
// so the content policy forbids everything.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
}

// SecurityHeaders adds the standard API security headers. Cache-Control
// defaults to no-store since responses carry health answers; a handler may
// set its own before writing.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		if h.Get("Cache-Control") == "" {
			h.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests the load balancer received over plain HTTP,
// as reported by X-Forwarded-Proto. Requests without the header pass.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			proto := r.Header.Get("X-Forwarded-Proto")
			if proto == "" || proto == "https" {
				next.ServeHTTP(w, r)
				return
			}

			p := models.NewProblem(models.ProblemTypeTLSRequired, "TLS required",
				http.StatusForbidden, GetRequestID(r.Context()))
			p.Detail = "This endpoint requires HTTPS"
			p.Instance = r.URL.Path
			p.Write(w)
		})
	}
}
