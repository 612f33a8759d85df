package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupKeyStore(t *testing.T) (*RedisKeyStore, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := NewRedisKeyStore(rdb, time.Minute)
	t.Cleanup(store.Close)
	return store, mr
}

func TestRedisKeyStoreRegisterAndValidate(t *testing.T) {
	store, mr := setupKeyStore(t)
	ctx := context.Background()

	require.NoError(t, store.Register(ctx, "sk-live-123", "tenant-1", "user-1"))

	assert.False(t, mr.Exists(apiKeyPrefix+"sk-live-123"), "raw key must not be stored")
	assert.True(t, mr.Exists(apiKeyPrefix+hashKey("sk-live-123")))

	id, err := store.Validate(ctx, "sk-live-123")
	require.NoError(t, err)
	assert.Equal(t, Identity{TenantID: "tenant-1", UserID: "user-1"}, id)
}

func TestRedisKeyStoreUnknownKey(t *testing.T) {
	store, _ := setupKeyStore(t)

	_, err := store.Validate(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownAPIKey)
}

func TestRedisKeyStoreCachesPositiveLookups(t *testing.T) {
	store, mr := setupKeyStore(t)
	ctx := context.Background()

	require.NoError(t, store.Register(ctx, "k", "t", "u"))
	_, err := store.Validate(ctx, "k")
	require.NoError(t, err)

	mr.Del(apiKeyPrefix + hashKey("k"))

	id, err := store.Validate(ctx, "k")
	require.NoError(t, err, "served from cache")
	assert.Equal(t, "t", id.TenantID)
}

func TestRedisKeyStoreRevoke(t *testing.T) {
	store, _ := setupKeyStore(t)
	ctx := context.Background()

	require.NoError(t, store.Register(ctx, "k", "t", "u"))
	_, err := store.Validate(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, store.Revoke(ctx, "k"))
	_, err = store.Validate(ctx, "k")
	assert.ErrorIs(t, err, ErrUnknownAPIKey)
}

func TestRedisKeyStoreIncompleteRecord(t *testing.T) {
	store, mr := setupKeyStore(t)

	mr.HSet(apiKeyPrefix+hashKey("k"), "tenant_id", "t")
	_, err := store.Validate(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete")
}

func TestAPIKeyStrategyWithRedis(t *testing.T) {
	store, _ := setupKeyStore(t)
	ctx := context.Background()
	require.NoError(t, store.Register(ctx, "k", "t", "u"))

	s := NewAPIKeyStrategy(store, "X-Tenant-Key")

	ac, err := s.TryResolve(ctx, &Request{Headers: Headers{"x-tenant-key": "k"}})
	require.NoError(t, err)
	assert.Equal(t, Context{TenantID: "t", UserID: "u", Method: MethodAPIKey}, ac)

	_, err = s.TryResolve(ctx, &Request{Headers: Headers{"X-Api-Key": "k"}})
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestRegisterRequiresFields(t *testing.T) {
	store, _ := setupKeyStore(t)
	assert.Error(t, store.Register(context.Background(), "k", "", "u"))
}
