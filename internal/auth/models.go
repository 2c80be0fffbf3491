// Package auth issues guest sessions and accepts Firebase ID tokens.
package auth

import (
	"unicode/utf8"

	"github.com/lungbuddy/lungbuddy/internal/api/models"
)

// Identity providers.
const (
	ProviderGuest    = "guest"
	ProviderFirebase = "firebase"
)

const (
	// MaxDisplayNameLength bounds guest display names, in runes.
	MaxDisplayNameLength = 40
	// DefaultGuestName is used when a guest does not pick a display name.
	DefaultGuestName = "Guest"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Provider    string `json:"provider"`
}

// GuestRequest is the body of POST /v1/auth/guest.
type GuestRequest struct {
	DisplayName string `json:"displayName"`
}

// Validate reports field errors in r.
func (r *GuestRequest) Validate() []models.FieldError {
	if utf8.RuneCountInString(r.DisplayName) <= MaxDisplayNameLength {
		return nil
	}
	return []models.FieldError{{
		Field:   "displayName",
		Message: "display name must be at most 40 characters",
		Code:    "TOO_LONG",
	}}
}

// TokenResponse is returned after a guest session is created.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresIn   int64     `json:"expiresIn"`
	User        Principal `json:"user"`
}

// ValidationError wraps field-level validation failures.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
