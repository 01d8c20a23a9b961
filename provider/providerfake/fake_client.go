// Package providerfake is a deterministic in-memory provider.Client used in
// tests to avoid live network calls. Behaviour is scripted per authorization
// code and per access token.
package providerfake

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/overbright/go-identity-service/provider"
)

var _ provider.Client = (*FakeClient)(nil)

type FakeClient struct {
	name string
	lock sync.RWMutex

	exchanges  map[string]*provider.TokenPair // code -> result
	tokenInfo  map[string]*provider.TokenMetadata
	refreshes  map[string]*provider.TokenPair // refresh token -> result
	revoked    []string
	failAll    error // when set, every call fails with this error
	revokeFail error
}

func New(name string) *FakeClient {
	return &FakeClient{
		name:      name,
		exchanges: make(map[string]*provider.TokenPair),
		tokenInfo: make(map[string]*provider.TokenMetadata),
		refreshes: make(map[string]*provider.TokenPair),
	}
}

// StubExchange scripts the result of exchanging code.
func (f *FakeClient) StubExchange(code string, pair *provider.TokenPair) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.exchanges[code] = pair
}

// StubTokenInfo scripts tokeninfo metadata for an access token.
func (f *FakeClient) StubTokenInfo(accessToken string, meta *provider.TokenMetadata) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.tokenInfo[accessToken] = meta
}

// StubRefresh scripts the result of refreshing refreshToken.
func (f *FakeClient) StubRefresh(refreshToken string, pair *provider.TokenPair) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.refreshes[refreshToken] = pair
}

// FailWith makes every subsequent call return err.
func (f *FakeClient) FailWith(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.failAll = err
}

// FailRevokeWith makes Revoke (only) fail with err.
func (f *FakeClient) FailRevokeWith(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.revokeFail = err
}

// Revoked returns the tokens revoked so far.
func (f *FakeClient) Revoked() []string {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return append([]string(nil), f.revoked...)
}

func (f *FakeClient) Name() string {
	return f.name
}

func (f *FakeClient) AuthCodeURL(state string, scopes []string) string {
	url := "https://fake.example.com/o/oauth2/auth?state=" + state
	for _, s := range scopes {
		url += "&scope=" + s
	}
	return url
}

func (f *FakeClient) ExchangeCode(_ context.Context, code string) (*provider.TokenPair, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()

	if f.failAll != nil {
		return nil, f.failAll
	}
	pair, ok := f.exchanges[code]
	if !ok {
		return nil, provider.NewError(http.StatusBadRequest, errors.New("unknown authorization code"))
	}
	clone := *pair
	return &clone, nil
}

func (f *FakeClient) TokenInfo(_ context.Context, accessToken string) (*provider.TokenMetadata, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()

	if f.failAll != nil {
		return nil, f.failAll
	}
	meta, ok := f.tokenInfo[accessToken]
	if !ok {
		return nil, provider.NewError(http.StatusBadRequest, errors.New("unknown access token"))
	}
	clone := *meta
	clone.Scopes = append([]string(nil), meta.Scopes...)
	return &clone, nil
}

func (f *FakeClient) VerifyOwnership(ctx context.Context, accessToken, providerUserID string) (bool, error) {
	meta, err := f.TokenInfo(ctx, accessToken)
	if err != nil {
		return false, err
	}
	return meta.Subject == providerUserID, nil
}

func (f *FakeClient) RefreshAccess(_ context.Context, refreshToken string) (*provider.TokenPair, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()

	if f.failAll != nil {
		return nil, f.failAll
	}
	pair, ok := f.refreshes[refreshToken]
	if !ok {
		return nil, provider.NewError(http.StatusBadRequest, errors.New("unknown refresh token"))
	}
	clone := *pair
	if clone.ExpiresIn == 0 {
		clone.ExpiresIn = time.Hour
	}
	return &clone, nil
}

func (f *FakeClient) Revoke(_ context.Context, token string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.revokeFail != nil {
		return f.revokeFail
	}
	if f.failAll != nil {
		return f.failAll
	}
	f.revoked = append(f.revoked, token)
	return nil
}
