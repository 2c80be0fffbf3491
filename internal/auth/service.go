package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Tokens *GuestTokens

	// Verifier enables Firebase ID tokens on protected routes. Optional.
	Verifier IDTokenVerifier

	Logger zerolog.Logger
}

// Service creates guest sessions and authenticates bearer tokens.
type Service struct {
	tokens   *GuestTokens
	verifier IDTokenVerifier
	logger   zerolog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{tokens: cfg.Tokens, verifier: cfg.Verifier, logger: cfg.Logger}
}

// FirebaseEnabled reports whether Firebase ID tokens are accepted.
func (s *Service) FirebaseEnabled() bool {
	return s.verifier != nil
}

// newGuestID returns "usr_" followed by 22 hex digits of a random UUID.
func newGuestID() string {
	return "usr_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:22]
}

// CreateGuest issues an access token for a new guest user.
func (s *Service) CreateGuest(_ context.Context, req *GuestRequest) (*TokenResponse, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if errs := req.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	p := Principal{UserID: newGuestID(), DisplayName: req.DisplayName, Provider: ProviderGuest}
	if p.DisplayName == "" {
		p.DisplayName = DefaultGuestName
	}

	token, err := s.tokens.Issue(p)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", p.UserID).Msg("guest session created")

	return &TokenResponse{
		AccessToken: token.Value,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokens.Expiry().Seconds()),
		User:        p,
	}, nil
}

// Authenticate resolves a bearer token to a principal. Guest tokens are
// tried first. Any failure other than expiry falls through to Firebase when
// a verifier is configured.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	p, err := s.tokens.Verify(token)
	if err == nil {
		return p, nil
	}
	if s.verifier == nil || errors.Is(err, ErrAccessTokenExpired) {
		return nil, err
	}

	p, err = s.verifier.Verify(ctx, token)
	if err != nil {
		s.logger.Debug().Err(err).Msg("firebase token rejected")
		return nil, err
	}
	return p, nil
}
