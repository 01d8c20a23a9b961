// Package statestore holds the short-lived, single-use records that carry an
// authorization flow between redirects. Records are keyed by opaque random
// tokens generated on Put; Take is an atomic read-and-delete so no record is
// ever observed twice, even under concurrent replay attempts.
package statestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/overbright/go-identity-service/internal/errors"
)

// Kind separates record families in the store. A token put under one kind
// can never be taken under another.
type Kind string

const (
	// KindAuthFlow records carry an in-flight authorization attempt.
	KindAuthFlow Kind = "authflow"
	// KindTwoFactor records bridge a provider login and a pending second factor.
	KindTwoFactor Kind = "twofactor"
)

// ErrNotFound covers never-existed, expired and already-consumed records.
// Callers cannot and must not distinguish these cases.
var ErrNotFound = apperrors.ErrNotFound

const tokenLength = 32 // bytes; 256 bits of entropy

// Store is the single-use record contract. Payloads are opaque bytes;
// callers serialize their own record types.
type Store interface {
	// Put stores payload under a freshly generated opaque token and
	// returns the token. The record expires after ttl.
	Put(ctx context.Context, kind Kind, payload []byte, ttl time.Duration) (string, error)

	// Take atomically retrieves and deletes the record. Returns
	// ErrNotFound for missing, expired or already-taken tokens.
	Take(ctx context.Context, kind Kind, token string) ([]byte, error)

	// Delete removes a record if present. Deleting an absent token is
	// not an error.
	Delete(ctx context.Context, kind Kind, token string) error
}

// NewToken generates an unpredictable record key.
func NewToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "statestore.NewToken rand.Read")
	}
	return hex.EncodeToString(b), nil
}
