package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication backend the application talks to.
type AuthMode string

const (
	// AuthModeAPI uses the marketplace REST authentication endpoints.
	AuthModeAPI AuthMode = "api"
	// AuthModeOIDC uses an OpenID Connect provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock uses the in-memory development backend (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "api", "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: api, oidc, mock)", v)
	}
}

// APIAuthConfig configures the REST authentication backend.
// Empty paths and expressions fall back to the backend defaults.
type APIAuthConfig struct {
	BaseURL       string        `env:"BASE_URL"`
	LoginPath     string        `env:"LOGIN_PATH"`
	RegisterPath  string        `env:"REGISTER_PATH"`
	ProfilePath   string        `env:"PROFILE_PATH"`
	LogoutPath    string        `env:"LOGOUT_PATH"`
	TokenExpr     string        `env:"TOKEN_EXPR"`
	PrincipalExpr string        `env:"PRINCIPAL_EXPR"`
	Timeout       time.Duration `env:"TIMEOUT"        envDefault:"15s"`
}

// OIDCConfig contains OAuth/OIDC configuration.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"agrimarket"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email groups"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// RoleClaim names the ID token or userinfo claim carrying the role or groups.
	RoleClaim string `env:"ROLE_CLAIM" envDefault:"groups"`
	// GroupRoles maps provider groups to roles: "growers=farmer,agronomists=expert".
	GroupRoles string `env:"GROUP_ROLES"`
}

// DevAuthConfig controls the development backend.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	// Accounts lists "email:role:secret" entries separated by commas.
	// Empty seeds one account per role.
	Accounts string `env:"ACCOUNTS"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication backend to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"api"`

	// API configuration (used when Mode=api).
	API APIAuthConfig `envPrefix:"AUTH_API_"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims values and falls back to safe defaults.
func (c *AuthConfig) Sanitize() {
	if c.Mode == "" {
		c.Mode = AuthModeAPI
	}
	c.API.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.Timeout <= 0 {
		c.API.Timeout = 15 * time.Second
	}
	c.OIDC.DiscoveryURL = strings.TrimSpace(c.OIDC.DiscoveryURL)
	c.OIDC.RoleClaim = strings.TrimSpace(c.OIDC.RoleClaim)
	c.DevAuth.Accounts = strings.TrimSpace(c.DevAuth.Accounts)
}

// Validate checks the settings required by the selected mode.
func (c *AuthConfig) Validate(isDev bool) error {
	switch c.Mode {
	case AuthModeAPI:
		if c.API.BaseURL == "" {
			return errors.New("AUTH_API_BASE_URL is required when AUTH_MODE=api")
		}
	case AuthModeOIDC:
		if c.OIDC.DiscoveryURL == "" {
			return errors.New("OIDC_DISCOVERY_URL is required when AUTH_MODE=oidc")
		}
		if c.OIDC.ClientID == "" {
			return errors.New("OIDC_CLIENT_ID is required when AUTH_MODE=oidc")
		}
	case AuthModeMock:
		if !isDev {
			return errors.New("AUTH_MODE=mock requires DEV=true")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Mode)
	}
	return nil
}
