package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Guest sessions are stateless. A guest receives one HS256 token carrying a
// generated user id and display name. There is no refresh token: once it
// expires the guest starts a new session or signs in with Firebase.

// DefaultAccessTokenExpiry is how long guest access tokens are valid.
const DefaultAccessTokenExpiry = 30 * 24 * time.Hour

var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
)

type guestClaims struct {
	jwt.RegisteredClaims
	UserID      string `json:"uid"`
	DisplayName string `json:"name,omitempty"`
}

// TokenConfig configures GuestTokens.
type TokenConfig struct {
	SigningKey string
	Issuer     string
	Audience   string

	// Expiry defaults to DefaultAccessTokenExpiry.
	Expiry time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Token is a signed access token and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// GuestTokens signs and verifies guest access tokens.
type GuestTokens struct {
	key      []byte
	issuer   string
	audience string
	expiry   time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// NewGuestTokens creates GuestTokens from cfg.
func NewGuestTokens(cfg TokenConfig) *GuestTokens {
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultAccessTokenExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &GuestTokens{
		key:      []byte(cfg.SigningKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		expiry:   cfg.Expiry,
		now:      cfg.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(cfg.Now),
		),
	}
}

// Expiry is the lifetime of issued tokens.
func (g *GuestTokens) Expiry() time.Duration { return g.expiry }

// Issue signs a token for p. The user id doubles as the subject.
func (g *GuestTokens) Issue(p Principal) (Token, error) {
	now := g.now()
	exp := now.Add(g.expiry)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, guestClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    g.issuer,
			Subject:   p.UserID,
			Audience:  jwt.ClaimStrings{g.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
	}).SignedString(g.key)
	if err != nil {
		return Token{}, fmt.Errorf("sign guest token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Verify checks signature, issuer, audience and expiry, and returns the
// guest principal. Expired tokens yield ErrAccessTokenExpired; every other
// failure wraps ErrInvalidAccessToken.
func (g *GuestTokens) Verify(value string) (*Principal, error) {
	var claims guestClaims
	_, err := g.parser.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return g.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrAccessTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	case claims.UserID == "" || claims.UserID != claims.Subject:
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidAccessToken)
	}
	return &Principal{UserID: claims.UserID, DisplayName: claims.DisplayName, Provider: ProviderGuest}, nil
}
