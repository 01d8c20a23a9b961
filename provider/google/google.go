// Package google is the live Google adapter for the provider.Client
// interface. Code exchange and refresh go through golang.org/x/oauth2; the
// returned ID token is verified with go-oidc before any identity claims are
// trusted.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/overbright/go-identity-service/provider"
)

const (
	// ProviderName is the registry key for this adapter.
	ProviderName = "google"

	issuerURL    = "https://accounts.google.com"
	tokenInfoURL = "https://www.googleapis.com/oauth2/v3/tokeninfo"
	revokeURL    = "https://oauth2.googleapis.com/revoke"
)

// Config holds the Google OAuth client credentials, loaded from the
// environment via caarlos0/env.
type Config struct {
	ClientID     string        `env:"GOOGLE_OAUTH_CLIENT_ID,required"`
	ClientSecret string        `env:"GOOGLE_OAUTH_CLIENT_SECRET,required"`
	RedirectURL  string        `env:"GOOGLE_OAUTH_REDIRECT_URL,required"`
	Timeout      time.Duration `env:"GOOGLE_OAUTH_TIMEOUT" envDefault:"10s"`
}

type Client struct {
	conf       *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
}

var _ provider.Client = (*Client)(nil)

// New discovers the Google OIDC endpoints and returns a ready adapter.
func New(ctx context.Context, cfg Config) (*Client, error) {
	oidcProvider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "google.New oidc discovery")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     oidcProvider.Endpoint(),
		},
		verifier:   oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Name() string {
	return ProviderName
}

func (c *Client) AuthCodeURL(state string, scopes []string) string {
	conf := *c.conf
	conf.Scopes = scopes
	// AccessTypeOffline asks Google for a refresh token on first consent
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (c *Client) ExchangeCode(ctx context.Context, code string) (*provider.TokenPair, error) {
	tok, err := c.conf.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, classify(err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok {
		return nil, provider.NewError(http.StatusBadRequest, errors.New("no id_token in exchange response"))
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, provider.NewError(http.StatusBadRequest, errors.Wrap(err, "id token verification failed"))
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, provider.NewError(http.StatusBadRequest, errors.Wrap(err, "failed to extract id token claims"))
	}

	return &provider.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    time.Until(tok.Expiry),
		User: provider.UserInfo{
			Subject:       claims.Sub,
			Email:         claims.Email,
			Name:          claims.Name,
			AvatarURL:     claims.Picture,
			EmailVerified: claims.EmailVerified,
		},
	}, nil
}

func (c *Client) TokenInfo(ctx context.Context, accessToken string) (*provider.TokenMetadata, error) {
	info, err := c.fetchTokenInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	expiresIn, _ := strconv.Atoi(info.ExpiresIn)
	return &provider.TokenMetadata{
		Scopes:    strings.Fields(info.Scope),
		ExpiresIn: time.Duration(expiresIn) * time.Second,
		Subject:   info.Sub,
	}, nil
}

func (c *Client) VerifyOwnership(ctx context.Context, accessToken, providerUserID string) (bool, error) {
	info, err := c.fetchTokenInfo(ctx, accessToken)
	if err != nil {
		return false, err
	}
	return info.Sub == providerUserID, nil
}

func (c *Client) RefreshAccess(ctx context.Context, refreshToken string) (*provider.TokenPair, error) {
	src := c.conf.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classify(err)
	}
	return &provider.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    time.Until(tok.Expiry),
	}, nil
}

func (c *Client) Revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "google.Revoke build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.ClassifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return provider.NewError(resp.StatusCode, fmt.Errorf("revoke returned status %d", resp.StatusCode))
	}
	return nil
}

type tokenInfoResponse struct {
	Sub       string `json:"sub"`
	Scope     string `json:"scope"`
	ExpiresIn string `json:"expires_in"`
	Email     string `json:"email"`
}

func (c *Client) fetchTokenInfo(ctx context.Context, accessToken string) (*tokenInfoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenInfoURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "google.fetchTokenInfo build request")
	}
	q := req.URL.Query()
	q.Set("access_token", accessToken)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.ClassifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.NewError(resp.StatusCode, fmt.Errorf("tokeninfo returned status %d", resp.StatusCode))
	}

	var info tokenInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrap(err, "google.fetchTokenInfo decode")
	}
	return &info, nil
}

// withHTTPClient makes x/oauth2 use the adapter's timeout-bearing client.
func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// classify maps an x/oauth2 exchange failure to the provider error
// taxonomy: transport failures are retryable, HTTP failures follow status.
func classify(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		return provider.NewError(status, err)
	}
	return provider.ClassifyTransport(err)
}
