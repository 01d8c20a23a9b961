package statestore

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const defaultMaxEntries = 10000

type record struct {
	kind      Kind
	payload   []byte
	createdAt time.Time
	expiresAt time.Time
}

// InMemoryStore is a thread-safe, bounded implementation of Store. When the
// capacity limit is reached, expired records are purged first and then the
// oldest live records are evicted. Eviction is a liveness safeguard only.
type InMemoryStore struct {
	mu         sync.Mutex
	records    map[string]*record
	maxEntries int
	nowFunc    func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

type InMemoryOption func(*InMemoryStore)

// WithMaxEntries overrides the capacity bound.
func WithMaxEntries(n int) InMemoryOption {
	return func(s *InMemoryStore) {
		s.maxEntries = n
	}
}

// WithNowFunc sets the clock (primarily for testing expiry behaviour).
func WithNowFunc(now func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) {
		s.nowFunc = now
	}
}

func NewInMemoryStore(options ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		records:    make(map[string]*record),
		maxEntries: defaultMaxEntries,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Put(_ context.Context, kind Kind, payload []byte, ttl time.Duration) (string, error) {
	if len(payload) == 0 {
		return "", errors.New("payload cannot be empty")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	token, err := NewToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if len(s.records) >= s.maxEntries {
		s.evictLocked(now)
	}

	s.records[token] = &record{
		kind:      kind,
		payload:   append([]byte(nil), payload...),
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	return token, nil
}

func (s *InMemoryStore) Take(_ context.Context, kind Kind, token string) ([]byte, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[token]
	if !ok {
		return nil, ErrNotFound
	}
	// An expired record behaves identically to a missing one
	delete(s.records, token)
	if rec.kind != kind || s.nowFunc().After(rec.expiresAt) {
		return nil, ErrNotFound
	}
	return rec.payload, nil
}

func (s *InMemoryStore) Delete(_ context.Context, _ Kind, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, token)
	return nil
}

// evictLocked purges expired records, then evicts the oldest live records
// until the store is under capacity. Caller holds the lock.
func (s *InMemoryStore) evictLocked(now time.Time) {
	for token, rec := range s.records {
		if now.After(rec.expiresAt) {
			delete(s.records, token)
		}
	}
	for len(s.records) >= s.maxEntries {
		oldestToken := ""
		var oldest time.Time
		for token, rec := range s.records {
			if oldestToken == "" || rec.createdAt.Before(oldest) {
				oldestToken = token
				oldest = rec.createdAt
			}
		}
		delete(s.records, oldestToken)
	}
}
