package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/overbright/go-identity-service/token"
)

const (
	secretStr           = "test-signing-secret"
	testAccountID       = "account-1"
	testProviderAccess  = "provider-access-token"
	testProviderRefresh = "provider-refresh-token"
)

func newManager(now *time.Time) *token.Manager {
	return token.New(
		token.NewHMACSigner(secretStr),
		token.WithIssuer("com.testissuer"),
		token.WithAudience("api"),
		token.WithNowFunc(func() time.Time { return *now }),
	)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(&now)

	raw, err := m.IssueAccessToken(testAccountID, testProviderAccess, time.Hour)
	require.NoError(t, err)

	details, err := m.VerifyAccessToken(raw)
	require.NoError(t, err)
	require.Equal(t, testAccountID, details.AccountID)
	require.Equal(t, testProviderAccess, details.ProviderAccessToken)
	require.Equal(t, now.Add(time.Hour).Unix(), details.ExpiresAt.Unix())
	require.NotEmpty(t, details.JTI)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(&now)

	raw, err := m.IssueRefreshToken(testAccountID, testProviderRefresh)
	require.NoError(t, err)

	details, err := m.VerifyRefreshToken(raw)
	require.NoError(t, err)
	require.Equal(t, testAccountID, details.AccountID)
	require.Equal(t, testProviderRefresh, details.ProviderRefreshToken)
}

func TestTokenFamilyIsolation(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(&now)

	access, err := m.IssueAccessToken(testAccountID, testProviderAccess, time.Hour)
	require.NoError(t, err)
	refresh, err := m.IssueRefreshToken(testAccountID, testProviderRefresh)
	require.NoError(t, err)

	// A structurally valid token of the wrong family is rejected as an
	// authentication failure
	_, err = m.VerifyAccessToken(refresh)
	require.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = m.VerifyRefreshToken(access)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestAccessTokenExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(&now)

	raw, err := m.IssueAccessToken(testAccountID, testProviderAccess, time.Hour)
	require.NoError(t, err)

	now = now.Add(time.Hour + time.Minute)
	_, err = m.VerifyAccessToken(raw)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestTamperedTokenRejected(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(&now)

	raw, err := m.IssueAccessToken(testAccountID, testProviderAccess, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = m.VerifyAccessToken(tampered)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestWrongSignerRejected(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(&now)
	other := token.New(
		token.NewHMACSigner("a-different-secret"),
		token.WithNowFunc(func() time.Time { return now }),
	)

	raw, err := other.IssueAccessToken(testAccountID, testProviderAccess, time.Hour)
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(raw)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestRevokeBlacklistsLocally(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(&now)

	access, err := m.IssueAccessToken(testAccountID, testProviderAccess, time.Hour)
	require.NoError(t, err)
	refresh, err := m.IssueRefreshToken(testAccountID, testProviderRefresh)
	require.NoError(t, err)

	m.Revoke(access, refresh)

	_, err = m.VerifyAccessToken(access)
	require.ErrorIs(t, err, token.ErrInvalidToken)
	_, err = m.VerifyRefreshToken(refresh)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestKeyPairSignerAndJWKS(t *testing.T) {
	keyPair, err := token.GenerateRSAKeyPair("kid-1", 2048)
	require.NoError(t, err)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := token.New(
		token.NewKeyPairSigner(keyPair),
		token.WithNowFunc(func() time.Time { return now }),
	)

	raw, err := m.IssueAccessToken(testAccountID, testProviderAccess, time.Hour)
	require.NoError(t, err)

	details, err := m.VerifyAccessToken(raw)
	require.NoError(t, err)
	require.Equal(t, testAccountID, details.AccountID)

	jwks, err := m.GetJWKS()
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "kid-1", jwks.Keys[0].Kid)
	require.Equal(t, "RSA", jwks.Keys[0].Kty)
}
