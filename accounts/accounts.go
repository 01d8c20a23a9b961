package accounts

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Kind identifies how an account authenticates.
type Kind string

const (
	// KindGoogle accounts sign in through the Google OAuth flow.
	KindGoogle Kind = "google"
	// KindLocal accounts sign in with a locally stored password hash.
	// A Google sign-in that collides with a local account on email is an
	// authentication failure, never a silent merge.
	KindLocal Kind = "local"
)

type Account struct {
	ID               string    `json:"id,omitempty"`               // Unique identifier for the account
	Email            string    `json:"email,omitempty"`            // Account email address
	Name             string    `json:"name,omitempty"`             // Display name
	AvatarURL        string    `json:"avatar_url,omitempty"`       // Avatar image URL from the provider
	Kind             Kind      `json:"kind,omitempty"`             // How this account authenticates
	ProviderUserID   string    `json:"provider_user_id,omitempty"` // Subject identifier at the provider
	PasswordHash     string    `json:"-"`                          // Hashed password for local accounts - never serialize
	TwoFactorEnabled bool      `json:"two_factor_enabled,omitempty"`
	GrantedScopes    []string  `json:"granted_scopes,omitempty"` // Provider scopes currently on record
	CreatedAt        time.Time `json:"created_at,omitempty"`
	LastLogin        time.Time `json:"last_login,omitempty"`
}

// HashPassword creates a bcrypt hash for local account passwords
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against the stored hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
