package auth

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// ErrFirebaseNotConfigured is returned when Firebase sign-in is disabled.
var ErrFirebaseNotConfigured = errors.New("firebase authentication not configured")

// IDTokenVerifier verifies third-party identity tokens.
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*Principal, error)
}

// tokenVerifier is the subset of the Firebase auth client we use.
type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseConfig holds configuration for Firebase ID-token verification.
type FirebaseConfig struct {
	// ProjectID is the Firebase project. Required.
	ProjectID string

	// CredentialsFile is an optional service account key. Verification only
	// needs public keys, so it may be empty.
	CredentialsFile string
}

// FirebaseVerifier verifies Firebase ID tokens.
type FirebaseVerifier struct {
	client tokenVerifier
}

// NewFirebaseVerifier initializes a Firebase app and its auth client.
func NewFirebaseVerifier(ctx context.Context, cfg FirebaseConfig) (*FirebaseVerifier, error) {
	if cfg.ProjectID == "" {
		return nil, ErrFirebaseNotConfigured
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting firebase auth client: %w", err)
	}

	return &FirebaseVerifier{client: client}, nil
}

// Verify validates a Firebase ID token and maps it to a principal.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Principal, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		if fbauth.IsIDTokenExpired(err) {
			return nil, ErrAccessTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	return principalFromToken(token), nil
}

func principalFromToken(token *fbauth.Token) *Principal {
	p := &Principal{
		UserID:   token.UID,
		Provider: ProviderFirebase,
	}
	if name, ok := token.Claims["name"].(string); ok {
		p.DisplayName = name
	} else if email, ok := token.Claims["email"].(string); ok {
		p.DisplayName = email
	}
	return p
}
