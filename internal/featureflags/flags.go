// Package featureflags lets operators toggle scoring features at runtime.
// Every flag has a compiled-in default; overrides live in a Repository and
// are read through a short-lived in-memory snapshot.
package featureflags

import (
	"errors"
	"fmt"
	"time"
)

// Flag keys.
const (
	FlagAIAdvice                = "ai_advice_enabled"
	FlagRoomInsights            = "room_insights_enabled"
	FlagCachedOnlyAirQuality    = "cached_only_air_quality"
	FlagDisableSubmissions      = "disable_leaderboard_submissions"
	FlagSubmissionCooldownHours = "submission_cooldown_hours"
	FlagBatchLimit              = "assessment_batch_limit"
)

// Defaults for numeric flags.
const (
	DefaultSubmissionCooldownHours = 24
	DefaultBatchLimit              = 100
)

var (
	// ErrUnknownFlag is returned when an update names a key with no definition.
	ErrUnknownFlag = errors.New("unknown feature flag")
	// ErrInvalidFlagValue is returned when an update's JSON type does not
	// match the flag's default.
	ErrInvalidFlagValue = errors.New("invalid feature flag value")
)

// Definition describes a flag known to the service.
type Definition struct {
	Key         string
	Default     any
	Description string
}

// Numbers are stored as float64 so defaults compare equal to decoded JSON.
var definitions = []Definition{
	{FlagAIAdvice, true, "request AI recommendations for assessment reports"},
	{FlagRoomInsights, true, "generate AI insights for room leaderboards"},
	{FlagCachedOnlyAirQuality, false, "serve air quality from cache without calling the provider"},
	{FlagDisableSubmissions, false, "reject new leaderboard score submissions"},
	{FlagSubmissionCooldownHours, float64(DefaultSubmissionCooldownHours), "hours between two submissions of one member"},
	{FlagBatchLimit, float64(DefaultBatchLimit), "maximum questionnaires per batch assessment"},
}

// Lookup returns the definition for key.
func Lookup(key string) (Definition, bool) {
	for _, d := range definitions {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// Flag is the effective value of a flag.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlagList is the JSON body listing flags.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate sets one flag.
type FlagUpdate struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// FlagUpdateRequest is the admin request body for changing flags.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// Validate checks that u names a defined flag and carries a value of the
// same JSON type as its default.
func (u FlagUpdate) Validate() error {
	def, ok := Lookup(u.Key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlag, u.Key)
	}
	var match bool
	switch def.Default.(type) {
	case bool:
		_, match = u.Value.(bool)
	case float64:
		_, match = u.Value.(float64)
	case string:
		_, match = u.Value.(string)
	}
	if !match {
		return fmt.Errorf("%w: %s expects %T", ErrInvalidFlagValue, u.Key, def.Default)
	}
	return nil
}

// BoolValue returns the flag as a bool, or fallback when f is nil or holds
// another type. Non-zero numbers count as true.
func (f *Flag) BoolValue(fallback bool) bool {
	if f == nil {
		return fallback
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	}
	return fallback
}

// Float64Value returns the flag as a float64, or fallback when f is nil or
// not numeric.
func (f *Flag) Float64Value(fallback float64) float64 {
	if f == nil {
		return fallback
	}
	switch v := f.Value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// IntValue truncates Float64Value.
func (f *Flag) IntValue(fallback int) int {
	return int(f.Float64Value(float64(fallback)))
}

// DefaultFlags returns a fresh map of every defined flag at its default.
func DefaultFlags() map[string]*Flag {
	flags := make(map[string]*Flag, len(definitions))
	for _, d := range definitions {
		flags[d.Key] = &Flag{Key: d.Key, Value: d.Default}
	}
	return flags
}
