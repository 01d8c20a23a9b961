// Package token mints and verifies the first-party signed tokens that wrap
// provider tokens. Access and refresh tokens are independent families with
// disjoint payload shapes; a structurally valid token of the wrong family
// fails verification the same way a forged one does.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/overbright/go-identity-service/internal/errors"
)

// ErrInvalidToken is the single outcome for every verification failure:
// bad signature, expiry, malformed payload, wrong token family, revoked.
// No detail about the cause crosses this boundary.
var ErrInvalidToken = apperrors.ErrInvalidToken

// Token family discriminator values carried in the "use" claim.
const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// AccessTokenDetails is the verified content of a session access token.
type AccessTokenDetails struct {
	AccountID           string
	ProviderAccessToken string
	ExpiresAt           time.Time
	JTI                 string
}

// RefreshTokenDetails is the verified content of a session refresh token.
type RefreshTokenDetails struct {
	AccountID            string
	ProviderRefreshToken string
	JTI                  string
}

type Manager struct {
	signer             Signer
	issuer             string
	audience           string
	revokedCache       RevokedTokenCache
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithAudience(audience string) ManagerOption {
	return func(m *Manager) {
		m.audience = audience
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(defaultSigner Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:       defaultSigner,
		issuer:       "go-identity-service",
		audience:     "api",
		revokedCache: NewInMemoryRevokedTokenCache(), // Default implementation
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// IssueAccessToken creates a signed access token for accountID, wrapping the
// provider access token. ttl of zero uses the configured default.
func (m *Manager) IssueAccessToken(accountID, providerAccessToken string, ttl time.Duration) (string, error) {
	if accountID == "" {
		return "", errors.New("Manager.IssueAccessToken accountID is required")
	}
	if ttl <= 0 {
		ttl = m.accessTokenExpiry
	}

	now := m.nowFunc()
	claims := jwt.MapClaims{
		"iss": m.issuer,
		"aud": m.audience,
		"sub": accountID,
		"use": useAccess,                  // Token family discriminator
		"pat": providerAccessToken,        // Wrapped provider access token
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": uuid.New().String(),
	}
	return m.signer.Sign(claims)
}

// IssueRefreshToken creates a signed refresh token for accountID, wrapping
// the provider refresh token. Refresh tokens never carry a provider access
// token.
func (m *Manager) IssueRefreshToken(accountID, providerRefreshToken string) (string, error) {
	if accountID == "" {
		return "", errors.New("Manager.IssueRefreshToken accountID is required")
	}

	now := m.nowFunc()
	claims := jwt.MapClaims{
		"iss": m.issuer,
		"aud": m.audience,
		"sub": accountID,
		"use": useRefresh,
		"prt": providerRefreshToken, // Wrapped provider refresh token
		"iat": now.Unix(),
		"exp": now.Add(m.refreshTokenExpiry).Unix(),
		"jti": uuid.New().String(),
	}
	return m.signer.Sign(claims)
}

// VerifyAccessToken validates a session access token and unwraps its
// payload. Every failure mode is reported as ErrInvalidToken.
func (m *Manager) VerifyAccessToken(rawToken string) (*AccessTokenDetails, error) {
	claims, err := m.verify(rawToken, useAccess)
	if err != nil {
		return nil, err
	}

	sub, _ := claims["sub"].(string)
	pat, _ := claims["pat"].(string)
	jti, _ := claims["jti"].(string)
	exp, _ := claims["exp"].(float64)
	if sub == "" || pat == "" {
		return nil, ErrInvalidToken
	}

	return &AccessTokenDetails{
		AccountID:           sub,
		ProviderAccessToken: pat,
		ExpiresAt:           time.Unix(int64(exp), 0),
		JTI:                 jti,
	}, nil
}

// VerifyRefreshToken validates a session refresh token and unwraps its
// payload. Every failure mode is reported as ErrInvalidToken.
func (m *Manager) VerifyRefreshToken(rawToken string) (*RefreshTokenDetails, error) {
	claims, err := m.verify(rawToken, useRefresh)
	if err != nil {
		return nil, err
	}

	sub, _ := claims["sub"].(string)
	prt, _ := claims["prt"].(string)
	jti, _ := claims["jti"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}

	return &RefreshTokenDetails{
		AccountID:            sub,
		ProviderRefreshToken: prt,
		JTI:                  jti,
	}, nil
}

// Revoke blacklists the given session tokens locally. Tokens that fail to
// parse are skipped: an unverifiable token can never issue a session anyway.
func (m *Manager) Revoke(rawTokens ...string) {
	for _, raw := range rawTokens {
		if raw == "" {
			continue
		}
		parsed, err := jwt.Parse(raw, m.signer.GetVerificationKey, jwt.WithTimeFunc(m.nowFunc))
		if err != nil || !parsed.Valid {
			continue
		}
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			continue
		}
		jti, _ := claims["jti"].(string)
		exp, _ := claims["exp"].(float64)
		if jti == "" {
			continue
		}
		_ = m.revokedCache.Add(jti, time.Unix(int64(exp), 0))
	}
}

// GetJWKS exposes the verification keys when the signer is asymmetric.
func (m *Manager) GetJWKS() (*JWKS, error) {
	signer, ok := m.signer.(*KeyPairSigner)
	if !ok {
		return nil, errors.New("signer does not publish a key set")
	}
	return signer.GetJWKS()
}

func (m *Manager) verify(rawToken, expectedUse string) (jwt.MapClaims, error) {
	if rawToken == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.Parse(rawToken, m.signer.GetVerificationKey, jwt.WithTimeFunc(m.nowFunc))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	// Wrong-family tokens are an authentication failure, not a crash
	if use, _ := claims["use"].(string); use != expectedUse {
		return nil, ErrInvalidToken
	}

	if jti, _ := claims["jti"].(string); jti != "" && m.revokedCache.IsRevoked(jti) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
