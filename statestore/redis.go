package statestore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "flowstate"

// RedisStore implements Store on Redis for deployments running several
// instances behind a load balancer. Single-use semantics come from GETDEL;
// expiry from the key TTL. Records are still short-lived and never durable.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(kind Kind, token string) string {
	return redisKeyPrefix + ":" + string(kind) + ":" + token
}

func (s *RedisStore) Put(ctx context.Context, kind Kind, payload []byte, ttl time.Duration) (string, error) {
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

	if err := s.client.Set(ctx, s.key(kind, token), payload, ttl).Err(); err != nil {
		return "", errors.Wrap(err, "statestore.RedisStore.Put")
	}
	return token, nil
}

func (s *RedisStore) Take(ctx context.Context, kind Kind, token string) ([]byte, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	payload, err := s.client.GetDel(ctx, s.key(kind, token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "statestore.RedisStore.Take")
	}
	return payload, nil
}

func (s *RedisStore) Delete(ctx context.Context, kind Kind, token string) error {
	if err := s.client.Del(ctx, s.key(kind, token)).Err(); err != nil {
		return errors.Wrap(err, "statestore.RedisStore.Delete")
	}
	return nil
}
