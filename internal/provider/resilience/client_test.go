package resilience_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lungbuddy/lungbuddy/internal/provider/resilience"
)

// fastConfig keeps retries short and the breaker out of the way unless a
// test sets its own.
func fastConfig(name string) resilience.ClientConfig {
	cb := resilience.DefaultCircuitBreakerConfig(name)
	cb.ReadyToTrip = resilience.TripOnFailureRatio(100, 0.5)
	return resilience.ClientConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      3,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		CircuitBreaker:  &cb,
	}
}

func get(t *testing.T, client *resilience.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	return client.Do(req)
}

func TestClient_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"list":[]}`))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := fastConfig("openweathermap")
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"list":[]}`, string(body))
	assert.NotNil(t, registry.GetHealth("openweathermap").LastSuccessAt)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("retry"))

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_ExhaustedRetriesReturnLastResponse(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := fastConfig("groq")
	cfg.MaxRetries = 2
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(3), attempts.Load(), "one call plus two retries")

	health := registry.GetHealth("groq")
	require.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "Bad Gateway")
}

func TestClient_ClientErrorsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("owm-bad-key"))

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_CircuitOpensAndFailsFast(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var transitions []gobreaker.State
	cb := resilience.CircuitBreakerConfig{
		Name:        "trip",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: resilience.TripOnFailureRatio(5, 0.5),
		OnStateChange: func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	}
	cfg := fastConfig("trip")
	cfg.CircuitBreaker = &cb
	client := resilience.NewClient(cfg)

	for i := 0; i < 2; i++ {
		resp, _ := get(t, client, server.URL)
		if resp != nil {
			resp.Body.Close()
		}
	}
	require.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	before := attempts.Load()
	resp, err := get(t, client, server.URL)
	if resp != nil {
		resp.Body.Close()
	}
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, attempts.Load(), "open circuit must not reach the provider")
}

func TestClient_AttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastConfig("slow")
	cfg.Timeout = 50 * time.Millisecond
	cfg.MaxRetries = 1
	client := resilience.NewClient(cfg)

	resp, err := get(t, client, server.URL)
	if resp != nil {
		resp.Body.Close()
	}
	assert.Error(t, err)
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("cancel"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)

	start := time.Now()
	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestClient_RetryReplaysBody(t *testing.T) {
	var attempts atomic.Int32
	bodies := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("groq-body"))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL,
		strings.NewReader(`{"model":"llama"}`))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"model":"llama"}`, <-bodies)
	assert.Equal(t, `{"model":"llama"}`, <-bodies)
}

func TestNewClient_Defaults(t *testing.T) {
	defaults := resilience.DefaultClientConfig("owm")
	assert.Equal(t, "owm", defaults.Name)
	assert.Equal(t, 10*time.Second, defaults.Timeout)
	assert.Equal(t, uint64(3), defaults.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, defaults.InitialInterval)
	assert.Equal(t, 5*time.Second, defaults.MaxInterval)
	require.NotNil(t, defaults.CircuitBreaker)
	assert.Equal(t, uint32(1), defaults.CircuitBreaker.MaxRequests)
	assert.Equal(t, time.Minute, defaults.CircuitBreaker.Timeout)

	client := resilience.NewClient(resilience.ClientConfig{Name: "bare"})
	assert.Equal(t, "bare", client.Name())
	assert.Equal(t, gobreaker.StateClosed, client.CircuitBreakerState())
	assert.Zero(t, client.CircuitBreakerCounts().Requests)
}

func TestTripOnFailureRatio(t *testing.T) {
	tests := []struct {
		name   string
		counts gobreaker.Counts
		trip   bool
	}{
		{"no requests", gobreaker.Counts{}, false},
		{"below minimum", gobreaker.Counts{Requests: 4, TotalFailures: 4}, false},
		{"low failure rate", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"half failing", gobreaker.Counts{Requests: 10, TotalFailures: 5}, true},
		{"minimum all failing", gobreaker.Counts{Requests: 5, TotalFailures: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.trip, resilience.DefaultReadyToTrip(tt.counts))
		})
	}

	strict := resilience.TripOnFailureRatio(2, 1)
	assert.False(t, strict(gobreaker.Counts{Requests: 3, TotalFailures: 2}))
	assert.True(t, strict(gobreaker.Counts{Requests: 2, TotalFailures: 2}))
}

func TestServerError(t *testing.T) {
	err := &resilience.ServerError{StatusCode: http.StatusServiceUnavailable}
	assert.Equal(t, "server error: Service Unavailable", err.Error())
}
