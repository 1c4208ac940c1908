package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, vars map[string]string) AppConfig {
	t.Helper()
	var cfg AppConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: vars}))
	return cfg
}

func TestAppConfig_Defaults(t *testing.T) {
	cfg := parse(t, map[string]string{})

	assert.False(t, cfg.IsDev)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, AuthModeAPI, cfg.Auth.Mode)
	assert.Equal(t, 15*time.Second, cfg.Auth.API.Timeout)
	assert.Equal(t, "groups", cfg.Auth.OIDC.RoleClaim)
	assert.Equal(t, 30*time.Second, cfg.Session.RevalidateInterval)
	assert.Equal(t, 2*time.Second, cfg.Session.RedirectDebounce)
	assert.Equal(t, 3*time.Second, cfg.Session.RevokeTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Session.SummaryCacheTTL)
	assert.Equal(t, StoreKindFile, cfg.Store.Kind)
	assert.Equal(t, "default", cfg.Store.Scope)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.URI)
	assert.Equal(t, "agrimarket:credentials:", cfg.Store.Redis.KeyPrefix)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, "/metrics", cfg.Observability.MetricsPath)
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	cfg := parse(t, map[string]string{
		"AUTH_MODE":                 "OIDC",
		"AUTH_API_BASE_URL":         "https://api.example.com",
		"AUTH_API_LOGIN_PATH":       "/v2/login",
		"AUTH_API_TOKEN_EXPR":       "data.jwt",
		"AUTH_API_TIMEOUT":          "5s",
		"OIDC_CLIENT_ID":            "shell",
		"OIDC_CLIENT_SECRET":        "super-secret",
		"OIDC_DISCOVERY_URL":        "https://login.example.com/.well-known/openid-configuration",
		"OIDC_SCOPE":                "openid email",
		"OIDC_ROLE_CLAIM":           "roles",
		"OIDC_GROUP_ROLES":          "growers=farmer",
		"DEV_AUTH_ACCOUNTS":         "a@example.com:buyer:pw",
		"SESSION_REVOKE_TIMEOUT":    "1s",
		"CREDENTIAL_STORE":          "redis",
		"REDIS_USE_CLUSTER":         "true",
		"REDIS_CLUSTER_NODES":       "r1:6379,r2:6379",
		"MARKETPLACE_API_URL":       "https://api.example.com/",
		"METRICS_ENABLED":           "true",
		"CREDENTIAL_STORE_SCOPE":    "staging",
		"SESSION_REDIRECT_DEBOUNCE": "500ms",
	})

	expected := AuthConfig{
		Mode: AuthModeOIDC,
		API: APIAuthConfig{
			BaseURL:   "https://api.example.com",
			LoginPath: "/v2/login",
			TokenExpr: "data.jwt",
			Timeout:   5 * time.Second,
		},
		OIDC: OIDCConfig{
			ClientID:     "shell",
			ClientSecret: "super-secret",
			Scope:        "openid email",
			DiscoveryURL: "https://login.example.com/.well-known/openid-configuration",
			RoleClaim:    "roles",
			GroupRoles:   "growers=farmer",
		},
		DevAuth: DevAuthConfig{Accounts: "a@example.com:buyer:pw"},
	}
	assert.Equal(t, expected, cfg.Auth)
	assert.Equal(t, time.Second, cfg.Session.RevokeTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.RedirectDebounce)
	assert.Equal(t, StoreKindRedis, cfg.Store.Kind)
	assert.Equal(t, "staging", cfg.Store.Scope)
	assert.Equal(t, []string{"r1:6379", "r2:6379"}, cfg.Store.Redis.ClusterNodes)
	assert.True(t, cfg.Store.Redis.UseCluster)
	assert.True(t, cfg.Observability.MetricsEnabled)

	cfg.Sanitize()
	assert.Equal(t, "https://api.example.com", cfg.HTTP.APIBaseURL)
	require.NoError(t, cfg.Validate())
}

func TestAppConfig_InvalidEnums(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{name: "auth mode", vars: map[string]string{"AUTH_MODE": "oauth"}},
		{name: "store kind", vars: map[string]string{"CREDENTIAL_STORE": "s3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg AppConfig
			err := env.ParseWithOptions(&cfg, env.Options{Environment: tt.vars})
			assert.Error(t, err)
		})
	}
}

func TestAuthConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		isDev   bool
		wantErr string
	}{
		{
			name:    "api requires base url",
			cfg:     AuthConfig{Mode: AuthModeAPI},
			wantErr: "AUTH_API_BASE_URL",
		},
		{
			name: "api ok",
			cfg:  AuthConfig{Mode: AuthModeAPI, API: APIAuthConfig{BaseURL: "https://api.example.com"}},
		},
		{
			name:    "oidc requires discovery url",
			cfg:     AuthConfig{Mode: AuthModeOIDC, OIDC: OIDCConfig{ClientID: "c"}},
			wantErr: "OIDC_DISCOVERY_URL",
		},
		{
			name:    "oidc requires client id",
			cfg:     AuthConfig{Mode: AuthModeOIDC, OIDC: OIDCConfig{DiscoveryURL: "https://idp"}},
			wantErr: "OIDC_CLIENT_ID",
		},
		{
			name:    "mock outside dev",
			cfg:     AuthConfig{Mode: AuthModeMock},
			wantErr: "DEV=true",
		},
		{
			name:  "mock in dev",
			cfg:   AuthConfig{Mode: AuthModeMock},
			isDev: true,
		},
		{
			name:    "unknown mode",
			cfg:     AuthConfig{Mode: "ldap"},
			wantErr: "unknown auth mode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.isDev)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStoreConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StoreConfig
		wantErr bool
	}{
		{name: "file needs nothing", cfg: StoreConfig{Kind: StoreKindFile}},
		{name: "file with hex key", cfg: StoreConfig{Kind: StoreKindFile, Key: strings.Repeat("ab", 32)}},
		{name: "file with short key", cfg: StoreConfig{Kind: StoreKindFile, Key: "abcd"}, wantErr: true},
		{name: "memory ignores key", cfg: StoreConfig{Kind: StoreKindMemory, Key: "abcd"}},
		{name: "redis standalone", cfg: StoreConfig{Kind: StoreKindRedis, Redis: RedisConfig{URI: "localhost:6379"}}},
		{name: "redis without uri", cfg: StoreConfig{Kind: StoreKindRedis}, wantErr: true},
		{
			name:    "cluster and sentinel",
			cfg:     StoreConfig{Kind: StoreKindRedis, Redis: RedisConfig{UseCluster: true, UseSentinel: true}},
			wantErr: true,
		},
		{
			name:    "cluster without nodes",
			cfg:     StoreConfig{Kind: StoreKindRedis, Redis: RedisConfig{UseCluster: true}},
			wantErr: true,
		},
		{
			name: "sentinel with nodes",
			cfg: StoreConfig{Kind: StoreKindRedis, Redis: RedisConfig{
				UseSentinel: true, SentinelNodes: []string{"s1:26379"},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAppConfig_Sanitize(t *testing.T) {
	t.Setenv("NODE_ENV", "development")

	cfg := AppConfig{
		LogLevel: " DEBUG ",
		Auth:     AuthConfig{API: APIAuthConfig{BaseURL: " https://api.example.com/ "}},
		Store: StoreConfig{Scope: "  ", Redis: RedisConfig{
			ClusterNodes: []string{" ", "r1:6379 "},
		}},
		Observability: ObservabilityConfig{MetricsPath: "stats"},
	}
	cfg.Sanitize()

	assert.True(t, cfg.IsDev)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, AuthModeAPI, cfg.Auth.Mode)
	assert.Equal(t, "https://api.example.com", cfg.Auth.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Auth.API.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Session.RevalidateInterval)
	assert.Equal(t, 15*time.Minute, cfg.Session.SummaryCacheTTL)
	assert.Equal(t, StoreKindFile, cfg.Store.Kind)
	assert.Equal(t, "default", cfg.Store.Scope)
	assert.Equal(t, []string{"r1:6379"}, cfg.Store.Redis.ClusterNodes)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.Equal(t, "/stats", cfg.Observability.MetricsPath)
}

func TestAppConfig_SlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := AppConfig{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}

func TestHTTPConfig_Validate(t *testing.T) {
	assert.NoError(t, (&HTTPConfig{}).Validate())
	assert.NoError(t, (&HTTPConfig{APIBaseURL: "https://api.example.com"}).Validate())
	assert.Error(t, (&HTTPConfig{APIBaseURL: "api.example.com"}).Validate())
}
