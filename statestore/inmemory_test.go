package statestore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/overbright/go-identity-service/statestore"
)

func TestPutTakeRoundTrip(t *testing.T) {
	store := statestore.NewInMemoryStore()
	ctx := context.Background()

	token, err := store.Put(ctx, statestore.KindAuthFlow, []byte("payload"), time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	payload, err := store.Take(ctx, statestore.KindAuthFlow, token)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), payload)
}

func TestTakeIsSingleUse(t *testing.T) {
	store := statestore.NewInMemoryStore()
	ctx := context.Background()

	token, err := store.Put(ctx, statestore.KindAuthFlow, []byte("payload"), time.Minute)
	require.NoError(t, err)

	_, err = store.Take(ctx, statestore.KindAuthFlow, token)
	require.NoError(t, err)

	_, err = store.Take(ctx, statestore.KindAuthFlow, token)
	require.ErrorIs(t, err, statestore.ErrNotFound)
}

func TestTakeWrongKind(t *testing.T) {
	store := statestore.NewInMemoryStore()
	ctx := context.Background()

	token, err := store.Put(ctx, statestore.KindAuthFlow, []byte("payload"), time.Minute)
	require.NoError(t, err)

	_, err = store.Take(ctx, statestore.KindTwoFactor, token)
	require.ErrorIs(t, err, statestore.ErrNotFound)
}

func TestExpiryBoundary(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := statestore.NewInMemoryStore(statestore.WithNowFunc(func() time.Time { return now }))
	ctx := context.Background()

	ttl := 10 * time.Minute
	justBefore, err := store.Put(ctx, statestore.KindAuthFlow, []byte("a"), ttl)
	require.NoError(t, err)
	justAfter, err := store.Put(ctx, statestore.KindAuthFlow, []byte("b"), ttl)
	require.NoError(t, err)

	now = now.Add(ttl - time.Second)
	payload, err := store.Take(ctx, statestore.KindAuthFlow, justBefore)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), payload)

	now = now.Add(2 * time.Second)
	_, err = store.Take(ctx, statestore.KindAuthFlow, justAfter)
	require.ErrorIs(t, err, statestore.ErrNotFound)
}

func TestConcurrentTakeHasOneWinner(t *testing.T) {
	store := statestore.NewInMemoryStore()
	ctx := context.Background()

	token, err := store.Put(ctx, statestore.KindAuthFlow, []byte("payload"), time.Minute)
	require.NoError(t, err)

	const attempts = 32
	var wg sync.WaitGroup
	successes := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, statestore.KindAuthFlow, token); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	require.Len(t, successes, 1)
}

func TestCapacityEviction(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := statestore.NewInMemoryStore(
		statestore.WithMaxEntries(3),
		statestore.WithNowFunc(func() time.Time { return now }),
	)
	ctx := context.Background()

	first, err := store.Put(ctx, statestore.KindAuthFlow, []byte("1"), time.Minute)
	require.NoError(t, err)

	var last string
	for i := 0; i < 4; i++ {
		now = now.Add(time.Second)
		last, err = store.Put(ctx, statestore.KindAuthFlow, []byte("n"), time.Minute)
		require.NoError(t, err)
	}

	// The oldest entry is gone, the newest survives
	_, err = store.Take(ctx, statestore.KindAuthFlow, first)
	require.ErrorIs(t, err, statestore.ErrNotFound)

	_, err = store.Take(ctx, statestore.KindAuthFlow, last)
	require.NoError(t, err)
}

func TestPutValidation(t *testing.T) {
	store := statestore.NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Put(ctx, statestore.KindAuthFlow, nil, time.Minute)
	require.Error(t, err)

	_, err = store.Put(ctx, statestore.KindAuthFlow, []byte("x"), 0)
	require.Error(t, err)
}
