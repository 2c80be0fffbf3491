// Package openweathermap provides a client for the OpenWeatherMap geocoding
// and air pollution APIs.
package openweathermap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lungbuddy/lungbuddy/internal/airquality"
	"github.com/lungbuddy/lungbuddy/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the OpenWeatherMap API.
	DefaultBaseURL = "https://api.openweathermap.org"

	// ProviderName identifies this provider.
	ProviderName = "openweathermap"
)

// ErrUnauthorized is returned when the API key is rejected.
var ErrUnauthorized = errors.New("openweathermap: invalid api key")

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap application id.
	APIKey string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry receives provider health for the default client.
	Registry *resilience.Registry
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// API response types.

type geocodeResult struct {
	Name    string  `json:"name"`
	State   string  `json:"state"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type pollutionResponse struct {
	List []pollutionEntry `json:"list"`
}

type pollutionEntry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		AQI int `json:"aqi"`
	} `json:"main"`
	Components map[string]float64 `json:"components"`
}

// Geocode resolves a place name to at most limit locations.
func (c *Client) Geocode(ctx context.Context, query string, limit int) ([]airquality.Location, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var results []geocodeResult
	if err := c.get(ctx, "/geo/1.0/direct", params, &results); err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}

	locations := make([]airquality.Location, 0, len(results))
	for _, r := range results {
		locations = append(locations, airquality.Location{
			Name:    r.Name,
			State:   r.State,
			Country: r.Country,
			Lat:     r.Lat,
			Lon:     r.Lon,
		})
	}
	return locations, nil
}

// CurrentPollution fetches current air pollution for a coordinate.
func (c *Client) CurrentPollution(ctx context.Context, lat, lon float64) (*airquality.Pollution, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	var result pollutionResponse
	if err := c.get(ctx, "/data/2.5/air_pollution", params, &result); err != nil {
		return nil, fmt.Errorf("fetch air pollution: %w", err)
	}
	if len(result.List) == 0 {
		return nil, airquality.ErrNoData
	}

	entry := result.List[0]
	pollution := &airquality.Pollution{
		Index:      entry.Main.AQI,
		MeasuredAt: time.Unix(entry.Dt, 0).UTC(),
	}
	if pm25, ok := entry.Components["pm2_5"]; ok {
		pollution.PM25 = &pm25
	}
	return pollution, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	params.Set("appid", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Ensure Client implements airquality.Provider.
var _ airquality.Provider = (*Client)(nil)
