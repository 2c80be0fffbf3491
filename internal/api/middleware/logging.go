package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// probePrefix marks liveness and readiness routes, which are polled often
// and logged at debug level when they succeed.
const probePrefix = "/v1/ops/"

// Logger logs one line per request and stores a request-scoped logger,
// carrying the request and trace IDs, in the context for zerolog.Ctx.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			fields := log.With().Str("request_id", GetRequestID(r.Context()))
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				fields = fields.
					Str("trace_id", sc.TraceID().String()).
					Str("span_id", sc.SpanID().String())
			}
			reqLog := fields.Logger()

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(reqLog.WithContext(r.Context())))

			completionEvent(&reqLog, r, rec.statusCode).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", rec.statusCode).
				Int64("bytes", rec.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}

func completionEvent(log *zerolog.Logger, r *http.Request, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest:
		return log.Warn()
	case strings.HasPrefix(r.URL.Path, probePrefix):
		return log.Debug()
	default:
		return log.Info()
	}
}
