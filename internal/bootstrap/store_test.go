package bootstrap

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimarket/agrimarket-ui/config"
	"github.com/agrimarket/agrimarket-ui/internal/adapters/filestore"
	redisadapter "github.com/agrimarket/agrimarket-ui/internal/adapters/redis"
	"github.com/agrimarket/agrimarket-ui/internal/adapters/sealedstore"
	"github.com/agrimarket/agrimarket-ui/internal/cryptoutil"
	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	authmocks "github.com/agrimarket/agrimarket-ui/internal/mocks/auth"
	"github.com/agrimarket/agrimarket-ui/internal/testutil"
)

func TestBuildCredentialStore_Memory(t *testing.T) {
	store, closeFn, err := BuildCredentialStore(context.Background(), CredentialStoreConfig{
		Store:  config.StoreConfig{Kind: config.StoreKindMemory},
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	assert.IsType(t, &authmocks.MemoryCredentialStore{}, store)
	assert.NoError(t, closeFn())
}

func TestBuildCredentialStore_File(t *testing.T) {
	dir := t.TempDir()
	store, closeFn, err := BuildCredentialStore(context.Background(), CredentialStoreConfig{
		Store:  config.StoreConfig{Kind: config.StoreKindFile, Path: dir, Scope: "staging"},
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, closeFn())

	fileStore, ok := store.(*filestore.Store)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "staging.json"), fileStore.Path())

	ctx := context.Background()
	creds := testutil.Credentials(domainauth.RoleFarmer)
	require.NoError(t, store.Save(ctx, creds))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestBuildCredentialStore_FileSealed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	storeCfg := config.StoreConfig{Kind: config.StoreKindFile, Path: dir, Scope: "default", Key: strings.Repeat("42", 32)}

	store, closeFn, err := BuildCredentialStore(ctx, CredentialStoreConfig{Store: storeCfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	assert.IsType(t, &sealedstore.Store{}, store)

	creds := testutil.Credentials(domainauth.RoleBuyer)
	require.NoError(t, store.Save(ctx, creds))

	plain, err := filestore.New(filestore.Options{Dir: dir, Scope: "default"})
	require.NoError(t, err)
	raw, err := plain.Load(ctx)
	require.NoError(t, err)
	assert.True(t, cryptoutil.IsSealed(raw.Token))
	assert.Equal(t, creds.Principal, raw.Principal)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestBuildCredentialStore_InvalidKey(t *testing.T) {
	store, closeFn, err := BuildCredentialStore(context.Background(), CredentialStoreConfig{
		Store:  config.StoreConfig{Kind: config.StoreKindFile, Path: t.TempDir(), Key: "too-short"},
		Logger: discardLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREDENTIAL_STORE_KEY")
	assert.Nil(t, store)
	assert.NoError(t, closeFn())
}

func TestBuildCredentialStore_MemoryIgnoresKey(t *testing.T) {
	store, _, err := BuildCredentialStore(context.Background(), CredentialStoreConfig{
		Store:  config.StoreConfig{Kind: config.StoreKindMemory, Key: strings.Repeat("42", 32)},
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	assert.IsType(t, &authmocks.MemoryCredentialStore{}, store)
}

func TestBuildCredentialStore_RedisConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		redis config.RedisConfig
	}{
		{name: "cluster without nodes", redis: config.RedisConfig{UseCluster: true}},
		{name: "no uri", redis: config.RedisConfig{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeFn, err := BuildCredentialStore(context.Background(), CredentialStoreConfig{
				Store:  config.StoreConfig{Kind: config.StoreKindRedis, Redis: tt.redis},
				Logger: discardLogger(),
			})
			require.Error(t, err)
			assert.Nil(t, store)
			assert.NoError(t, closeFn())
		})
	}
}

func TestBuildCredentialStore_Redis(t *testing.T) {
	addr := testutil.StartRedis(t)

	store, closeFn, err := BuildCredentialStore(context.Background(), CredentialStoreConfig{
		Store: config.StoreConfig{
			Kind:  config.StoreKindRedis,
			Scope: "bootstrap-test",
			Redis: config.RedisConfig{URI: addr, KeyPrefix: "agrimarket:test:"},
		},
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	redisStore, ok := store.(*redisadapter.CredentialStore)
	require.True(t, ok)
	assert.Equal(t, "agrimarket:test:bootstrap-test", redisStore.Key())
	require.NoError(t, store.Clear(context.Background()))
}

func TestBuildCredentialStore_RedisSealed(t *testing.T) {
	ctx := context.Background()
	addr := testutil.StartRedis(t)
	storeCfg := config.StoreConfig{
		Kind:  config.StoreKindRedis,
		Scope: "sealed",
		Key:   strings.Repeat("42", 32),
		Redis: config.RedisConfig{URI: addr, KeyPrefix: "agrimarket:test:"},
	}

	store, closeFn, err := BuildCredentialStore(ctx, CredentialStoreConfig{Store: storeCfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	creds := testutil.Credentials(domainauth.RoleFinancial)
	require.NoError(t, store.Save(ctx, creds))

	client := testutil.RedisClientAt(t, addr)
	raw, err := client.Get(ctx, "agrimarket:test:sealed").Result()
	require.NoError(t, err)
	assert.NotContains(t, raw, creds.Token)
	assert.Contains(t, raw, creds.Principal.Email)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}
