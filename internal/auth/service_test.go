package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lungbuddy/lungbuddy/internal/auth"
)

type stubVerifier struct {
	tokens map[string]*auth.Principal
	calls  int
}

func (v *stubVerifier) Verify(_ context.Context, idToken string) (*auth.Principal, error) {
	v.calls++
	if p, ok := v.tokens[idToken]; ok {
		return p, nil
	}
	return nil, errors.New("unknown token")
}

func newTestService(verifier auth.IDTokenVerifier) *auth.Service {
	return auth.NewService(auth.ServiceConfig{
		Tokens:   newTestTokens("service-test-key"),
		Verifier: verifier,
		Logger:   zerolog.Nop(),
	})
}

func TestService_CreateGuest(t *testing.T) {
	svc := newTestService(nil)

	resp, err := svc.CreateGuest(context.Background(), &auth.GuestRequest{DisplayName: "  Ana  "})
	require.NoError(t, err)

	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(auth.DefaultAccessTokenExpiry.Seconds()), resp.ExpiresIn)
	assert.True(t, strings.HasPrefix(resp.User.UserID, "usr_"))
	assert.Len(t, resp.User.UserID, 26)
	assert.Equal(t, "Ana", resp.User.DisplayName)
	assert.Equal(t, auth.ProviderGuest, resp.User.Provider)

	principal, err := svc.Authenticate(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User, *principal)
}

func TestService_CreateGuest_DefaultName(t *testing.T) {
	resp, err := newTestService(nil).CreateGuest(context.Background(), &auth.GuestRequest{})
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultGuestName, resp.User.DisplayName)
}

func TestService_CreateGuest_NameTooLong(t *testing.T) {
	_, err := newTestService(nil).CreateGuest(context.Background(), &auth.GuestRequest{
		DisplayName: strings.Repeat("a", auth.MaxDisplayNameLength+1),
	})

	var verr *auth.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "displayName", verr.Errors[0].Field)
}

func TestService_Authenticate_FirebaseFallback(t *testing.T) {
	verifier := &stubVerifier{tokens: map[string]*auth.Principal{
		"firebase-token": {UserID: "fb-uid-1", DisplayName: "Bo", Provider: auth.ProviderFirebase},
	}}
	svc := newTestService(verifier)
	assert.True(t, svc.FirebaseEnabled())

	principal, err := svc.Authenticate(context.Background(), "firebase-token")
	require.NoError(t, err)
	assert.Equal(t, "fb-uid-1", principal.UserID)
	assert.Equal(t, auth.ProviderFirebase, principal.Provider)

	_, err = svc.Authenticate(context.Background(), "garbage")
	assert.Error(t, err)
	assert.Equal(t, 2, verifier.calls)
}

func TestService_Authenticate_NoFirebase(t *testing.T) {
	svc := newTestService(nil)
	assert.False(t, svc.FirebaseEnabled())

	_, err := svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestService_Authenticate_ExpiredGuestSkipsFirebase(t *testing.T) {
	issued := time.Now().Add(-48 * time.Hour)
	expired, err := auth.NewGuestTokens(auth.TokenConfig{
		SigningKey: "service-test-key",
		Issuer:     testIssuer,
		Audience:   testAudience,
		Expiry:     time.Hour,
		Now:        func() time.Time { return issued },
	}).Issue(auth.Principal{UserID: "usr_old"})
	require.NoError(t, err)

	verifier := &stubVerifier{}
	_, err = newTestService(verifier).Authenticate(context.Background(), expired.Value)

	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
	assert.Zero(t, verifier.calls)
}
