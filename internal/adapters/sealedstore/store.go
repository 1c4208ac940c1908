// Package sealedstore encrypts the bearer token before it reaches another credential store.
package sealedstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agrimarket/agrimarket-ui/internal/cryptoutil"
	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

var _ ports.CredentialStore = (*Store)(nil)

// Options configures a Store.
type Options struct {
	Inner  ports.CredentialStore
	Sealer cryptoutil.Sealer
	// Scope is bound into every sealed token, so a token copied between scopes fails to open.
	Scope  string
	Logger *slog.Logger
}

// Store wraps a CredentialStore and keeps only sealed tokens in it. The principal is stored
// as-is; the token is bound to the scope and principal ID.
type Store struct {
	inner  ports.CredentialStore
	sealer cryptoutil.Sealer
	scope  string
	logger *slog.Logger
}

// New creates a sealing store.
func New(opts Options) (*Store, error) {
	if opts.Inner == nil {
		return nil, errors.New("inner credential store is required")
	}
	if opts.Sealer == nil {
		return nil, errors.New("sealer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{inner: opts.Inner, sealer: opts.Sealer, scope: opts.Scope, logger: logger}, nil
}

func (s *Store) assoc(p domainauth.Principal) []byte {
	return []byte(s.scope + "\x00" + p.ID)
}

// Load reads and opens the stored pair. A token that fails to open is reported as corrupt.
// A plaintext token written before sealing was enabled is returned and sealed in place.
//
// Sealed and plaintext tokens are told apart by the "v1:" prefix alone. A plaintext token
// that happens to start with it fails to open and is reported as corrupt, which signs the
// user out once; nothing is ever returned that did not authenticate.
func (s *Store) Load(ctx context.Context) (domainauth.Credentials, error) {
	creds, err := s.inner.Load(ctx)
	if err != nil {
		return domainauth.Credentials{}, err
	}

	if !cryptoutil.IsSealed(creds.Token) {
		if saveErr := s.Save(ctx, creds); saveErr != nil {
			s.logger.WarnContext(ctx, "failed to seal plaintext credential", "error", saveErr)
		} else {
			s.logger.InfoContext(ctx, "sealed plaintext credential")
		}
		return creds, nil
	}

	token, err := s.sealer.Open(creds.Token, s.assoc(creds.Principal))
	if err != nil {
		return domainauth.Credentials{}, fmt.Errorf("%w: %w", domainauth.ErrCorruptCredentials, err)
	}
	creds.Token = string(token)
	return creds, nil
}

// Save seals the token and writes the pair through the inner store.
func (s *Store) Save(ctx context.Context, creds domainauth.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	sealed, err := s.sealer.Seal([]byte(creds.Token), s.assoc(creds.Principal))
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}
	creds.Token = sealed
	return s.inner.Save(ctx, creds)
}

// Clear removes the pair from the inner store.
func (s *Store) Clear(ctx context.Context) error {
	return s.inner.Clear(ctx)
}
