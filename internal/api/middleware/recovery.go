package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Recovery returns a middleware that recovers from panics and returns a 500
// problem. http.ErrAbortHandler is re-raised so the server can abort the
// connection.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rec)
				}

				reqLog := zerolog.Ctx(r.Context())
				if reqLog.GetLevel() == zerolog.Disabled {
					reqLog = &log
				}

				requestID := GetRequestID(r.Context())
				reqLog.Error().
					Str("request_id", requestID).
					Interface("error", rec).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")

				writeProblem(w, r, http.StatusInternalServerError, "an unexpected error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
