// Package models holds the JSON request and response bodies of the API.
package models

import (
	"bytes"
	"time"
)

// HealthStatus is the health of the service or one of its dependencies.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// PagedResponseMeta describes a truncated list.
type PagedResponseMeta struct {
	Limit int `json:"limit"`
	Count int `json:"count"`
}

// Timestamp encodes as an RFC 3339 UTC string with whole seconds.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).UTC().Truncate(time.Second).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler. null leaves t unchanged.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	return (*time.Time)(t).UnmarshalJSON(data)
}

// Time returns t as a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// TimestampPtr converts an optional time.
func TimestampPtr(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	return (*Timestamp)(t)
}
