package redis

// Package redis provides Redis-based adapters for agrimarket.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

const (
	// DefaultPrefix namespaces credential keys.
	DefaultPrefix = "agrimarket:credentials:"
	// DefaultScope is used when no scope is configured.
	DefaultScope = "default"
)

var _ ports.CredentialStore = (*CredentialStore)(nil)

// CredentialStore keeps the credential pair in a single Redis string holding JSON, so the
// token and principal are always written and removed together.
type CredentialStore struct {
	client redis.UniversalClient
	key    string
}

// CredentialStoreOptions configures a CredentialStore.
type CredentialStoreOptions struct {
	Prefix string
	Scope  string
}

// NewCredentialStore creates a Redis credential store with the default prefix and scope.
func NewCredentialStore(client redis.UniversalClient) *CredentialStore {
	return NewCredentialStoreWithOptions(client, CredentialStoreOptions{})
}

// NewCredentialStoreWithOptions creates a Redis credential store keyed by prefix and scope.
func NewCredentialStoreWithOptions(client redis.UniversalClient, opts CredentialStoreOptions) *CredentialStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	scope := opts.Scope
	if scope == "" {
		scope = DefaultScope
	}
	return &CredentialStore{client: client, key: prefix + scope}
}

// Key returns the Redis key holding the credential pair.
func (s *CredentialStore) Key() string { return s.key }

func (s *CredentialStore) Load(ctx context.Context) (domainauth.Credentials, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Credentials{}, domainauth.ErrNoCredentials
		}
		return domainauth.Credentials{}, fmt.Errorf("redis get: %w", err)
	}

	var creds domainauth.Credentials
	if unmarshalErr := json.Unmarshal(data, &creds); unmarshalErr != nil {
		return domainauth.Credentials{}, fmt.Errorf("%w: %w", domainauth.ErrCorruptCredentials, unmarshalErr)
	}
	if validErr := creds.Validate(); validErr != nil {
		return domainauth.Credentials{}, fmt.Errorf("%w: %w", domainauth.ErrCorruptCredentials, validErr)
	}
	return creds, nil
}

func (s *CredentialStore) Save(ctx context.Context, creds domainauth.Credentials) error {
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("refusing to save partial credentials: %w", err)
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	// No TTL: the server decides when a token stops being valid.
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
