// Package scopes tracks which provider scopes each account has granted and
// computes the delta a reauthorization flow needs to request.
package scopes

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/overbright/go-identity-service/accounts"
)

// Ledger records granted provider scopes per account on top of the account
// storage collaborator. Writes are last-writer-wins; each write is
// idempotent with respect to the provider's current truth.
type Ledger struct {
	repo accounts.Repo
}

func NewLedger(repo accounts.Repo) *Ledger {
	return &Ledger{repo: repo}
}

// RecordGranted unions newly granted scopes into the account's stored set.
func (l *Ledger) RecordGranted(accountID string, granted []string) error {
	account, err := l.repo.GetByID(accountID)
	if err != nil {
		return errors.Wrap(err, "Ledger.RecordGranted GetByID")
	}

	merged := union(account.GrantedScopes, granted)
	if err := l.repo.UpdateScopes(accountID, merged); err != nil {
		return errors.Wrap(err, "Ledger.RecordGranted UpdateScopes")
	}
	return nil
}

// Granted returns the scopes currently on record for the account.
func (l *Ledger) Granted(accountID string) ([]string, error) {
	account, err := l.repo.GetByID(accountID)
	if err != nil {
		return nil, errors.Wrap(err, "Ledger.Granted GetByID")
	}
	return append([]string(nil), account.GrantedScopes...), nil
}

// Missing returns the scopes on record that the most recent token no longer
// carries. A non-empty result means the provider silently revoked scopes
// and the client needs to reauthorize.
func (l *Ledger) Missing(accountID string, currentScopes []string) ([]string, error) {
	stored, err := l.Granted(accountID)
	if err != nil {
		return nil, err
	}

	current := make(map[string]struct{}, len(currentScopes))
	for _, s := range currentScopes {
		current[s] = struct{}{}
	}

	var missing []string
	for _, s := range stored {
		if _, ok := current[s]; !ok {
			missing = append(missing, s)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, scopes := range [][]string{a, b} {
		for _, s := range scopes {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
