// Package airquality resolves a city to its current US EPA air quality index.
package airquality

import (
	"errors"
	"strings"
	"time"
)

// Lookup errors.
var (
	ErrInvalidCity         = errors.New("city name is required")
	ErrCityNotFound        = errors.New("city not found")
	ErrNoData              = errors.New("no air quality data for location")
	ErrNoCachedData        = errors.New("no cached air quality data")
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
)

// Source describes how an AQI value was derived.
type Source string

const (
	// SourcePM25 means the AQI was computed from the PM2.5 concentration.
	SourcePM25 Source = "pm25"

	// SourceIndex means PM2.5 was missing and the provider's 1-5 index was mapped instead.
	SourceIndex Source = "index"
)

// Location is a geocoded place.
type Location struct {
	Name    string  `json:"name"`
	State   string  `json:"state,omitempty"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Display returns "name, state, country" skipping empty parts.
func (l Location) Display() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Name, l.State, l.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Pollution is the current pollution reported by a provider for a location.
type Pollution struct {
	// PM25 is the fine particulate concentration in µg/m³, nil when not reported.
	PM25 *float64

	// Index is the provider's own 1-5 air quality index.
	Index int

	MeasuredAt time.Time
}

// Reading is the result of an air quality lookup.
type Reading struct {
	Query     string    `json:"query"`
	Location  Location  `json:"location"`
	AQI       int       `json:"aqi"`
	Category  string    `json:"category"`
	Source    Source    `json:"source"`
	PM25      *float64  `json:"pm25,omitempty"`
	Index     int       `json:"index,omitempty"`
	Provider  string    `json:"provider"`
	FetchedAt time.Time `json:"fetchedAt"`

	// Stale is set when a cached reading past its freshness window is served
	// because the provider could not be reached.
	Stale bool `json:"stale"`
}
