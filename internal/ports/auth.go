package ports

// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
)

// CredentialStore persists the bearer token and cached principal across restarts.
// The pair is written and cleared together. Load returns domainauth.ErrNoCredentials
// when empty and domainauth.ErrCorruptCredentials when only part of the pair is readable.
type CredentialStore interface {
	Load(ctx context.Context) (domainauth.Credentials, error)
	Save(ctx context.Context, creds domainauth.Credentials) error
	Clear(ctx context.Context) error
}

// AuthBackend is the remote authentication service.
//
// Implementations must report an explicit credential rejection as domainauth.ErrUnauthorized
// and connectivity failures (network, timeout, unavailable upstream) as domainauth.ErrTransient,
// so callers can tell the two apart.
type AuthBackend interface {
	// FetchProfile returns the principal the token belongs to.
	FetchProfile(ctx context.Context, token string) (domainauth.Principal, error)

	// ExchangeCredentials trades an identifier and secret for a token and principal.
	ExchangeCredentials(ctx context.Context, identifier, secret string) (domainauth.Credentials, error)

	// RegisterAccount creates an account and returns a token and principal for it.
	RegisterAccount(ctx context.Context, reg domainauth.Registration) (domainauth.Credentials, error)

	// RevokeSession tells the service the token is no longer in use.
	RevokeSession(ctx context.Context, token string) error
}

// RoleMapper maps provider groups or claim values to marketplace roles.
type RoleMapper interface {
	Map(values []string) (domainauth.Role, bool)
}

// Navigator moves the user to another location of the application.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// SessionMetrics observes session lifecycle events.
type SessionMetrics interface {
	ObserveOperation(op, outcome string)
	ObservePhase(phase domainauth.Phase)
	ObserveUnauthorized()
}
