package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/capitalized/internal/config"
	"github.com/magabrotheeeer/capitalized/internal/storage"
)

func setupTestStore(t *testing.T, prefix string) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
		KeyPrefix:    prefix,
	}

	store, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestSetManyAndGet(t *testing.T) {
	store, mr := setupTestStore(t, "device-1:")
	ctx := context.Background()

	err := store.SetMany(ctx, map[string]string{
		storage.KeyAccessToken:  "access",
		storage.KeyRefreshToken: "refresh",
	})
	require.NoError(t, err)

	v, ok, err := store.Get(ctx, storage.KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "access", v)

	raw, err := mr.Get("device-1:" + storage.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", raw)
}

func TestGetNotFound(t *testing.T) {
	store, _ := setupTestStore(t, "")

	_, ok, err := store.Get(context.Background(), "no_such_key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	store, _ := setupTestStore(t, "")
	ctx := context.Background()

	require.NoError(t, store.SetMany(ctx, map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, store.Delete(ctx, "a", "missing"))
	require.NoError(t, store.Delete(ctx))

	_, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNoExpiration(t *testing.T) {
	store, mr := setupTestStore(t, "")
	ctx := context.Background()

	require.NoError(t, store.SetMany(ctx, map[string]string{"a": "1"}))
	mr.FastForward(365 * 24 * time.Hour)

	_, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInitServerInvalidAddr(t *testing.T) {
	cfg := config.RedisConnection{
		AddressRedis: "127.0.0.1:1",
		DialTimeout:  200 * time.Millisecond,
	}

	store, err := InitServer(context.Background(), cfg)
	assert.Nil(t, store)
	assert.Error(t, err)
}
