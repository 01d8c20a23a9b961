package fakeaccountrepo

import (
	"sync"

	"github.com/google/uuid"
	"github.com/overbright/go-identity-service/accounts"
	apperrors "github.com/overbright/go-identity-service/internal/errors"
)

var _ accounts.Repo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	accounts map[string]*accounts.Account
	emailIds map[string]string // email to account id
	lock     sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{
		accounts: make(map[string]*accounts.Account),
		emailIds: make(map[string]string),
	}
}

func (ar *FakeAccountRepo) Create(account *accounts.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if _, ok := ar.emailIds[account.Email]; ok {
		return apperrors.ErrAccountExists
	}

	stored := *account
	ar.accounts[stored.ID] = &stored
	ar.emailIds[stored.Email] = stored.ID
	return nil
}

func (ar *FakeAccountRepo) GetByEmail(email string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	id, ok := ar.emailIds[email]
	if !ok {
		return nil, apperrors.ErrAccountNotFound
	}
	return copyAccount(ar.accounts[id]), nil
}

func (ar *FakeAccountRepo) GetByID(id string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	account, ok := ar.accounts[id]
	if !ok {
		return nil, apperrors.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (ar *FakeAccountRepo) UpdateScopes(id string, scopes []string) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	account, ok := ar.accounts[id]
	if !ok {
		return apperrors.ErrAccountNotFound
	}
	account.GrantedScopes = append([]string(nil), scopes...)
	return nil
}

func copyAccount(a *accounts.Account) *accounts.Account {
	c := *a
	c.GrantedScopes = append([]string(nil), a.GrantedScopes...)
	return &c
}
