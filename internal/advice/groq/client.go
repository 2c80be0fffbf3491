// Package groq provides a client for the Groq OpenAI-compatible chat
// completions API.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lungbuddy/lungbuddy/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the Groq OpenAI-compatible API root.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultModel is the chat model used for advice.
	DefaultModel = "llama-3.3-70b-versatile"

	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 0.7

	// DefaultRateLimitRetries is how many times a 429 response is retried.
	DefaultRateLimitRetries = 2

	// ProviderName identifies this provider.
	ProviderName = "groq"
)

// Client errors.
var (
	ErrNotConfigured = errors.New("groq: api key not configured")
	ErrRateLimited   = errors.New("groq: rate limited")
	ErrEmptyResponse = errors.New("groq: empty completion")
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Groq client.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64

	// HTTPClient is the HTTP client to use. If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Registry receives provider health for the default client.
	Registry *resilience.Registry

	// RequestsPerMinute throttles outgoing completions (default: 30).
	RequestsPerMinute int

	// RateLimitRetries is how many times a 429 is retried (default: 2).
	RateLimitRetries int

	// RetryDelay returns the wait before retry attempt n (default: (n+1)×2s).
	RetryDelay func(attempt int) time.Duration

	Logger zerolog.Logger
}

// Client calls Groq chat completions with JSON output.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  HTTPDoer
	limiter     *rate.Limiter
	retries     int
	retryDelay  func(int) time.Duration
	logger      zerolog.Logger
}

// NewClient creates a new Groq client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	retries := cfg.RateLimitRetries
	if retries <= 0 {
		retries = DefaultRateLimitRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == nil {
		retryDelay = func(attempt int) time.Duration {
			return time.Duration(attempt+1) * 2 * time.Second
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         30 * time.Second,
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		temperature: temperature,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm/6+1),
		retries:     retries,
		retryDelay:  retryDelay,
		logger:      cfg.Logger,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

var codeFence = regexp.MustCompile("(?i)```json\\s*|```")

// Complete sends a single user prompt and returns the model's JSON text with
// any markdown code fences removed.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    c.temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		content, err := c.send(ctx, body)
		if errors.Is(err, ErrRateLimited) && attempt < c.retries {
			delay := c.retryDelay(attempt)
			c.logger.Warn().Dur("delay", delay).Int("attempt", attempt+1).Msg("groq rate limited, retrying")
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if err != nil {
			return "", err
		}
		return content, nil
	}
}

func (c *Client) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("groq %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(codeFence.ReplaceAllString(result.Choices[0].Message.Content, ""))
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
