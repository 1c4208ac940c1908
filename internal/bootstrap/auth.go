package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agrimarket/agrimarket-ui/config"
	"github.com/agrimarket/agrimarket-ui/internal/adapters/authapi"
	"github.com/agrimarket/agrimarket-ui/internal/adapters/authroles"
	"github.com/agrimarket/agrimarket-ui/internal/adapters/devauth"
	"github.com/agrimarket/agrimarket-ui/internal/adapters/oidc"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

// AuthBackendConfig contains configuration for the authentication backend.
type AuthBackendConfig struct {
	Auth   config.AuthConfig
	IsDev  bool
	Logger *slog.Logger
}

// BuildAuthBackend creates the authentication backend for the configured auth mode.
//
//nolint:ireturn // the backend is selected at runtime.
func BuildAuthBackend(ctx context.Context, cfg AuthBackendConfig) (ports.AuthBackend, error) {
	if err := cfg.Auth.Validate(cfg.IsDev); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return buildDevAuthBackend(cfg, logger)
	case config.AuthModeOIDC:
		return buildOIDCBackend(ctx, cfg)
	default:
		return buildAPIBackend(cfg)
	}
}

//nolint:ireturn
func buildDevAuthBackend(cfg AuthBackendConfig, logger *slog.Logger) (ports.AuthBackend, error) {
	accounts, err := devauth.ParseAccounts(cfg.Auth.DevAuth.Accounts)
	if err != nil {
		return nil, fmt.Errorf("parse dev accounts: %w", err)
	}
	backend, err := devauth.NewBackend(devauth.Config{Accounts: accounts})
	if err != nil {
		return nil, fmt.Errorf("create dev auth backend: %w", err)
	}
	logger.Warn("using development auth backend", "configured_accounts", len(accounts))
	return backend, nil
}

//nolint:ireturn
func buildOIDCBackend(ctx context.Context, cfg AuthBackendConfig) (ports.AuthBackend, error) {
	o := cfg.Auth.OIDC
	groups, err := authroles.ParseGroupMap(o.GroupRoles)
	if err != nil {
		return nil, fmt.Errorf("parse OIDC_GROUP_ROLES: %w", err)
	}

	backend, err := oidc.NewBackend(ctx, oidc.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Scope:        o.Scope,
		DiscoveryURL: o.DiscoveryURL,
		RoleClaim:    o.RoleClaim,
		Roles:        authroles.StaticRoleMapper{Groups: groups},
	})
	if err != nil {
		return nil, fmt.Errorf("create OIDC backend: %w", err)
	}
	return backend, nil
}

//nolint:ireturn
func buildAPIBackend(cfg AuthBackendConfig) (ports.AuthBackend, error) {
	a := cfg.Auth.API
	client, err := authapi.New(authapi.Config{
		BaseURL:       a.BaseURL,
		LoginPath:     a.LoginPath,
		RegisterPath:  a.RegisterPath,
		ProfilePath:   a.ProfilePath,
		LogoutPath:    a.LogoutPath,
		TokenExpr:     a.TokenExpr,
		PrincipalExpr: a.PrincipalExpr,
		Timeout:       a.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create auth API backend: %w", err)
	}
	return client, nil
}
