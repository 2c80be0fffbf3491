package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lungbuddy/lungbuddy/internal/api/middleware"
)

// captureRequestID runs one request through RequestID and returns the ID
// seen by the handler along with the response.
func captureRequestID(t *testing.T, incoming string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	if incoming != "" {
		req.Header.Set("X-Request-Id", incoming)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec
}

func TestRequestID_Generated(t *testing.T) {
	id, rec := captureRequestID(t, "")

	require.NotEmpty(t, id)
	assert.True(t, strings.HasPrefix(id, "req_"), id)
	assert.Len(t, id, len("req_")+32)
	assert.Equal(t, id, rec.Header().Get("X-Request-Id"))
}

func TestRequestID_KeepsSafeClientID(t *testing.T) {
	for _, incoming := range []string{"existing_request_id", "mobile-app:7f3a.1", strings.Repeat("a", 128)} {
		id, rec := captureRequestID(t, incoming)
		assert.Equal(t, incoming, id)
		assert.Equal(t, incoming, rec.Header().Get("X-Request-Id"))
	}
}

func TestRequestID_ReplacesUnsafeClientID(t *testing.T) {
	for _, bad := range []string{"has space", "line\nbreak", "<script>", strings.Repeat("a", 129)} {
		id, _ := captureRequestID(t, bad)
		assert.NotEqual(t, bad, id)
		assert.True(t, strings.HasPrefix(id, "req_"), id)
	}
}

func TestRequestID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := middleware.NewRequestID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate request ID %s", id)
		seen[id] = struct{}{}
	}
}

func TestWithRequestID(t *testing.T) {
	assert.Empty(t, middleware.GetRequestID(context.Background()))

	ctx := middleware.WithRequestID(context.Background(), "evt_42")
	assert.Equal(t, "evt_42", middleware.GetRequestID(ctx))
}
