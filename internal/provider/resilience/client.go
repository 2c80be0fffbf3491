package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling the provider while its
// circuit is open or the half-open probe budget is used up.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig configures a provider HTTP client. Zero durations and
// retry counts fall back to DefaultClientConfig values.
type ClientConfig struct {
	// Name is the provider name used for the breaker, the registry and logs.
	Name string

	// Timeout bounds each attempt, not the whole call.
	Timeout time.Duration

	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker overrides DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, tracks the client's health under Name.
	Registry *Registry

	Logger zerolog.Logger
}

// DefaultClientConfig returns the settings used for provider calls when
// nothing else is configured.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cb,
	}
}

// Client executes provider requests through a circuit breaker and retries
// network failures and 5xx responses with exponential backoff.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient creates a client and registers it with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	defaults := DefaultClientConfig(cfg.Name)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaults.MaxInterval
	}

	cbConfig := *defaults.CircuitBreaker
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	cbConfig.Logger = cfg.Logger

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type parameter
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.config.Name
}

// Do sends req using its own context. See DoWithContext.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext sends req, retrying transport errors and 5xx responses.
// 4xx responses are returned as-is. When retries run out on a 5xx the last
// response is returned with a nil error so callers can read the status.
// An open circuit fails fast with ErrCircuitOpen.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var last *http.Response
	attempt := func() error {
		if last != nil {
			drain(last)
			last = nil
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			return c.send(ctx, req)
		})
		if resp != nil {
			last = resp
		}
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		default:
			return err
		}
	}

	notify := func(err error, wait time.Duration) {
		c.config.Logger.Debug().
			Err(err).
			Str("provider", c.config.Name).
			Dur("retry_in", wait).
			Msg("provider call failed, retrying")
	}

	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		c.recordFailure(err)
		if last != nil {
			return last, nil
		}
		return nil, err
	}

	c.recordSuccess()
	return last, nil
}

// send performs one attempt. 5xx responses are returned together with a
// ServerError so they count against the breaker.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	attempt := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		attempt.Body = body
	}

	resp, err := c.httpClient.Do(attempt)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp, &ServerError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) recordSuccess() {
	if c.config.Registry != nil {
		c.config.Registry.RecordSuccess(c.config.Name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.config.Registry != nil {
		c.config.Registry.RecordFailure(c.config.Name, err)
	}
}

// CircuitBreakerState returns the breaker's current state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts returns the breaker's counters for the current window.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// ServerError is a 5xx response from a provider.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
