package accounts

// Repo is the persistent account storage collaborator. The orchestrator only
// ever reads accounts and mutates their recorded scopes; everything else is
// owned by the account management side of the service.
type Repo interface {
	Create(account *Account) error
	GetByEmail(email string) (*Account, error)
	GetByID(id string) (*Account, error)
	UpdateScopes(id string, scopes []string) error
}
