// Package provider abstracts the third-party identity provider the
// orchestrator authenticates against. One concrete adapter exists per
// provider; tests use the deterministic double in providerfake.
package provider

import (
	"context"
	"time"
)

// UserInfo is the normalized identity the provider reports for a token.
type UserInfo struct {
	Subject       string // Provider-side unique user identifier
	Email         string
	Name          string
	AvatarURL     string
	EmailVerified bool
}

// TokenPair is the raw output of an authorization-code exchange or a
// refresh. RefreshToken may be empty: providers only return one on the
// first consent, or never on plain refreshes.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	User         UserInfo
}

// TokenMetadata describes what a provider access token is currently good
// for, as reported by the provider's introspection/tokeninfo endpoint.
type TokenMetadata struct {
	Scopes    []string
	ExpiresIn time.Duration
	Subject   string
}

// Client is the capability interface the orchestrator depends on. It never
// retries: transient failures are classified via *Error and surfaced so the
// HTTP layer can decide on retry UX.
type Client interface {
	// Name returns the provider identifier (e.g. "google").
	Name() string

	// AuthCodeURL builds the provider authorization URL for the given
	// state token and scope set.
	AuthCodeURL(state string, scopes []string) string

	// ExchangeCode exchanges an authorization code for provider tokens.
	ExchangeCode(ctx context.Context, code string) (*TokenPair, error)

	// TokenInfo fetches scope and expiry metadata for an access token.
	TokenInfo(ctx context.Context, accessToken string) (*TokenMetadata, error)

	// VerifyOwnership reports whether accessToken belongs to the provider
	// user identified by providerUserID. Guards permission-grant flows
	// completed while signed in to a different third-party account.
	VerifyOwnership(ctx context.Context, accessToken, providerUserID string) (bool, error)

	// RefreshAccess trades a provider refresh token for a fresh access token.
	RefreshAccess(ctx context.Context, refreshToken string) (*TokenPair, error)

	// Revoke invalidates a provider token (access or refresh).
	Revoke(ctx context.Context, token string) error
}
