package config

import "os"

type SecurityConfig interface {
	GetSigningSecret() string
	GetRotateRefreshTokens() bool
	GetProviderTimeoutSeconds() int
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSigningSecret returns the HMAC secret used to sign session tokens.
// An empty value makes the server generate an ephemeral secret at startup,
// which is fine for single-instance deployments.
func (Security) GetSigningSecret() string {
	return os.Getenv("SIGNING_SECRET")
}

func (Security) GetRotateRefreshTokens() bool {
	return os.Getenv("ROTATE_REFRESH_TOKENS") == "true"
}

func (Security) GetProviderTimeoutSeconds() int {
	return 10
}
