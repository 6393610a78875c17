package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// InMemoryIdempotencyStore
// =============================================================================

func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *time.Time) {
	t.Helper()
	store := NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestInMemoryIdempotencyStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	result, err := store.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, result, "first reserve owns the key")

	_, err = store.Reserve(ctx, "k1", time.Minute)
	assert.ErrorIs(t, err, shared.ErrIdempotencyInFlight)

	require.NoError(t, store.Complete(ctx, "k1", []byte(`{"id":"1"}`), time.Hour))

	result, err = store.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(result))

	require.NoError(t, store.Release(ctx, "k1"))
	result, err = store.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, result, "release keeps completed results")
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k"))

	result, err := store.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, now := newTestStore(t)

	_, err := store.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)

	*now = now.Add(time.Minute)
	result, err := store.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err, "an expired reservation can be claimed again")
	assert.Nil(t, result)

	*now = now.Add(2 * time.Minute)
	store.cleanup()
	assert.Zero(t, store.Size())
}

func TestInMemoryIdempotencyStore_ConcurrentReserve(t *testing.T) {
	store, _ := newTestStore(t)

	const n = 32
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		owners int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := store.Reserve(context.Background(), "same", time.Minute)
			if err == nil && result == nil {
				mu.Lock()
				owners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, owners)
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

// =============================================================================
// Factory
// =============================================================================

func TestIdempotencyStoreFactory(t *testing.T) {
	t.Run("no redis host uses memory", func(t *testing.T) {
		store, client, err := NewIdempotencyStoreFactory(config.RedisConfig{}).CreateStore(context.Background())
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
		assert.Nil(t, client)
	})

	unreachable := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	t.Run("unreachable redis falls back", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		store, client, err := NewIdempotencyStoreFactory(unreachable, WithLogger(zaptest.NewLogger(t))).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
		assert.Nil(t, client)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _, err := NewIdempotencyStoreFactory(unreachable, WithInMemoryFallback(false)).CreateStore(ctx)
		assert.ErrorContains(t, err, "redis required")
	})
}

func TestNewRedisIdempotencyStore_DefaultPrefix(t *testing.T) {
	store := NewRedisIdempotencyStore(nil, "")
	assert.Equal(t, defaultKeyPrefix, store.keyPrefix)
	assert.Nil(t, store.Client())
}
