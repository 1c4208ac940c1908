package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agrimarket/agrimarket-ui/config"
	"github.com/agrimarket/agrimarket-ui/internal/adapters/filestore"
	redisadapter "github.com/agrimarket/agrimarket-ui/internal/adapters/redis"
	"github.com/agrimarket/agrimarket-ui/internal/adapters/sealedstore"
	"github.com/agrimarket/agrimarket-ui/internal/cryptoutil"
	authmocks "github.com/agrimarket/agrimarket-ui/internal/mocks/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

// CredentialStoreConfig contains configuration for the credential store.
type CredentialStoreConfig struct {
	Store  config.StoreConfig
	Logger *slog.Logger
}

// BuildCredentialStore creates the configured credential store. The returned close
// function releases any connection the store holds and is never nil. Persistent stores
// are wrapped so tokens are sealed at rest when CREDENTIAL_STORE_KEY is set.
//
//nolint:ireturn // the store is selected at runtime.
func BuildCredentialStore(ctx context.Context, cfg CredentialStoreConfig) (ports.CredentialStore, func() error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, closeStore, err := buildBaseStore(ctx, cfg.Store, logger)
	if err != nil || cfg.Store.Kind == config.StoreKindMemory || cfg.Store.Key == "" {
		return store, closeStore, err
	}

	sealed, err := sealStore(store, cfg.Store, logger)
	if err != nil {
		return nil, func() error { return nil }, errors.Join(err, closeStore())
	}
	return sealed, closeStore, nil
}

//nolint:ireturn // the store is selected at runtime.
func sealStore(inner ports.CredentialStore, cfg config.StoreConfig, logger *slog.Logger) (ports.CredentialStore, error) {
	key, err := cryptoutil.ParseKey(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid CREDENTIAL_STORE_KEY: %w", err)
	}
	sealer, err := cryptoutil.NewAESGCM(key)
	if err != nil {
		return nil, fmt.Errorf("create credential sealer: %w", err)
	}
	store, err := sealedstore.New(sealedstore.Options{Inner: inner, Sealer: sealer, Scope: cfg.Scope, Logger: logger})
	if err != nil {
		return nil, err
	}
	logger.Debug("credential tokens are sealed at rest")
	return store, nil
}

//nolint:ireturn // the store is selected at runtime.
func buildBaseStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (ports.CredentialStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Kind {
	case config.StoreKindMemory:
		logger.Warn("credentials are kept in memory and will not survive a restart")
		return authmocks.NewMemoryCredentialStore(), noop, nil

	case config.StoreKindRedis:
		if err := cfg.Validate(); err != nil {
			return nil, noop, err
		}
		client, err := ConnectRedis(ctx, RedisConnectConfig{Redis: cfg.Redis, Logger: logger})
		if err != nil {
			return nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		store := redisadapter.NewCredentialStoreWithOptions(client, redisadapter.CredentialStoreOptions{
			Prefix: cfg.Redis.KeyPrefix,
			Scope:  cfg.Scope,
		})
		logger.Debug("using redis credential store", "key", store.Key())
		return store, client.Close, nil

	default:
		store, err := filestore.New(filestore.Options{Dir: cfg.Path, Scope: cfg.Scope})
		if err != nil {
			return nil, noop, fmt.Errorf("create file credential store: %w", err)
		}
		logger.Debug("using file credential store", "path", store.Path())
		return store, noop, nil
	}
}
