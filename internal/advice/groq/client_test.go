package groq_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lungbuddy/lungbuddy/internal/advice/groq"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *groq.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return groq.NewClient(groq.ClientConfig{
		APIKey:            "gsk_test",
		BaseURL:           server.URL,
		HTTPClient:        http.DefaultClient,
		RequestsPerMinute: 6000,
		RetryDelay:        func(int) time.Duration { return time.Millisecond },
		Logger:            zerolog.Nop(),
	})
}

func completion(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
}

func TestClient_Complete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, groq.DefaultModel, body["model"])
		assert.Equal(t, 0.7, body["temperature"])
		assert.Equal(t, map[string]interface{}{"type": "json_object"}, body["response_format"])

		json.NewEncoder(w).Encode(completion("```json\n{\"recommendations\":[]}\n```"))
	})

	content, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"recommendations":[]}`, content)
}

func TestClient_Complete_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(completion(`{"ok":true}`))
	})

	content, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Complete_RateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), "hello")
	assert.ErrorIs(t, err, groq.ErrRateLimited)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Complete_Errors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad"}`))
		})
		_, err := client.Complete(context.Background(), "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})

	t.Run("no choices", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		})
		_, err := client.Complete(context.Background(), "hello")
		assert.ErrorIs(t, err, groq.ErrEmptyResponse)
	})

	t.Run("not configured", func(t *testing.T) {
		client := groq.NewClient(groq.ClientConfig{})
		assert.False(t, client.Configured())
		_, err := client.Complete(context.Background(), "hello")
		assert.ErrorIs(t, err, groq.ErrNotConfigured)
	})
}
