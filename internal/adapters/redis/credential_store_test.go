package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/testutil"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.RedisClient(t)
}

func TestCredentialStore_Key(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	assert.Equal(t, "agrimarket:credentials:default", NewCredentialStore(client).Key())
	s := NewCredentialStoreWithOptions(client, CredentialStoreOptions{Prefix: "kiosk:", Scope: "stall-4"})
	assert.Equal(t, "kiosk:stall-4", s.Key())
}

func TestCredentialStore_SaveLoadClear(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewCredentialStore(client)
	ctx := context.Background()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, domainauth.ErrNoCredentials)

	creds := testutil.Credentials(domainauth.RoleBuyer)
	require.NoError(t, store.Save(ctx, creds))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, got)

	ttl, err := client.TTL(ctx, store.Key()).Result()
	require.NoError(t, err)
	assert.Less(t, ttl, time.Duration(0), "credential key must not expire")

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, domainauth.ErrNoCredentials)

	// Clearing an empty store is fine.
	require.NoError(t, store.Clear(ctx))
}

func TestCredentialStore_RejectsPartialSave(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewCredentialStore(client)
	err := store.Save(context.Background(), domainauth.Credentials{Token: "only-token"})
	require.Error(t, err)

	exists, err := client.Exists(context.Background(), store.Key()).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestCredentialStore_CorruptValue(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewCredentialStoreWithOptions(client, CredentialStoreOptions{Scope: "corrupt"})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, store.Key(), "{not json", 0).Err())
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, domainauth.ErrCorruptCredentials)

	require.NoError(t, client.Set(ctx, store.Key(), `{"token":"t","principal":{}}`, 0).Err())
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, domainauth.ErrCorruptCredentials)
}

func TestCredentialStore_ScopesAreIsolated(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	a := NewCredentialStoreWithOptions(client, CredentialStoreOptions{Scope: "a"})
	b := NewCredentialStoreWithOptions(client, CredentialStoreOptions{Scope: "b"})

	require.NoError(t, a.Save(ctx, testutil.Credentials(domainauth.RoleFarmer)))
	_, err := b.Load(ctx)
	assert.ErrorIs(t, err, domainauth.ErrNoCredentials)
}
