package sealedstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimarket/agrimarket-ui/internal/cryptoutil"
	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	authmocks "github.com/agrimarket/agrimarket-ui/internal/mocks/auth"
	"github.com/agrimarket/agrimarket-ui/internal/testutil"
)

func newSealer(t *testing.T, fill byte) *cryptoutil.AESGCM {
	t.Helper()
	key := make([]byte, cryptoutil.KeySize)
	for i := range key {
		key[i] = fill
	}
	s, err := cryptoutil.NewAESGCM(key)
	require.NoError(t, err)
	return s
}

func newStore(t *testing.T, inner *authmocks.MemoryCredentialStore, scope string) *Store {
	t.Helper()
	s, err := New(Options{
		Inner:  inner,
		Sealer: newSealer(t, 7),
		Scope:  scope,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresInnerAndSealer(t *testing.T) {
	_, err := New(Options{Sealer: newSealer(t, 1)})
	require.Error(t, err)

	_, err = New(Options{Inner: authmocks.NewMemoryCredentialStore()})
	require.Error(t, err)
}

func TestStore_RoundTripKeepsTokenSealed(t *testing.T) {
	ctx := context.Background()
	inner := authmocks.NewMemoryCredentialStore()
	s := newStore(t, inner, "default")
	creds := testutil.Credentials(domainauth.RoleBuyer)

	require.NoError(t, s.Save(ctx, creds))

	raw, ok := inner.Snapshot()
	require.True(t, ok)
	assert.True(t, cryptoutil.IsSealed(raw.Token))
	assert.NotContains(t, raw.Token, creds.Token)
	assert.Equal(t, creds.Principal, raw.Principal)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestStore_LoadPropagatesInnerErrors(t *testing.T) {
	s := newStore(t, authmocks.NewMemoryCredentialStore(), "default")
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, domainauth.ErrNoCredentials)
}

func TestStore_SealedTokenBoundToScopeAndPrincipal(t *testing.T) {
	ctx := context.Background()
	inner := authmocks.NewMemoryCredentialStore()
	require.NoError(t, newStore(t, inner, "staging").Save(ctx, testutil.Credentials(domainauth.RoleFarmer)))

	_, err := newStore(t, inner, "production").Load(ctx)
	require.ErrorIs(t, err, domainauth.ErrCorruptCredentials)

	raw, _ := inner.Snapshot()
	raw.Principal.ID = "someone-else"
	inner.SetRaw(raw)
	_, err = newStore(t, inner, "staging").Load(ctx)
	require.ErrorIs(t, err, domainauth.ErrCorruptCredentials)
}

func TestStore_WrongKeyIsCorrupt(t *testing.T) {
	ctx := context.Background()
	inner := authmocks.NewMemoryCredentialStore()
	require.NoError(t, newStore(t, inner, "default").Save(ctx, testutil.Credentials(domainauth.RoleExpert)))

	other, err := New(Options{Inner: inner, Sealer: newSealer(t, 9), Scope: "default"})
	require.NoError(t, err)
	_, err = other.Load(ctx)
	assert.ErrorIs(t, err, domainauth.ErrCorruptCredentials)
}

func TestStore_SealsPlaintextOnLoad(t *testing.T) {
	ctx := context.Background()
	creds := testutil.Credentials(domainauth.RoleLogistics)
	inner := authmocks.NewMemoryCredentialStoreWith(creds)
	s := newStore(t, inner, "default")

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, got)

	raw, _ := inner.Snapshot()
	assert.True(t, cryptoutil.IsSealed(raw.Token))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestStore_PlaintextWithSealedPrefixIsCorrupt(t *testing.T) {
	ctx := context.Background()
	creds := testutil.Credentials(domainauth.RoleBuyer)
	creds.Token = "v1:opaque-session-token"
	inner := authmocks.NewMemoryCredentialStoreWith(creds)

	_, err := newStore(t, inner, "default").Load(ctx)
	require.ErrorIs(t, err, domainauth.ErrCorruptCredentials)

	raw, ok := inner.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "v1:opaque-session-token", raw.Token, "load never rewrites a value it could not open")
}

func TestStore_SaveRejectsPartialAndPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	inner := authmocks.NewMemoryCredentialStore()
	s := newStore(t, inner, "default")

	require.Error(t, s.Save(ctx, domainauth.Credentials{Principal: testutil.Principal(domainauth.RoleBuyer)}))

	inner.SaveErr = errors.New("disk full")
	assert.ErrorIs(t, s.Save(ctx, testutil.Credentials(domainauth.RoleBuyer)), inner.SaveErr)

	inner.ClearErr = errors.New("locked")
	assert.ErrorIs(t, s.Clear(ctx), inner.ClearErr)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	inner := authmocks.NewMemoryCredentialStore()
	s := newStore(t, inner, "default")
	require.NoError(t, s.Save(ctx, testutil.Credentials(domainauth.RoleFinancial)))

	require.NoError(t, s.Clear(ctx))
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, domainauth.ErrNoCredentials)
}
