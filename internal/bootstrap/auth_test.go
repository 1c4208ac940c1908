package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimarket/agrimarket-ui/config"
	"github.com/agrimarket/agrimarket-ui/internal/adapters/authapi"
	"github.com/agrimarket/agrimarket-ui/internal/adapters/devauth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildAuthBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthBackendConfig
		check   func(t *testing.T, backend any)
		wantErr string
	}{
		{
			name: "api mode",
			cfg: AuthBackendConfig{Auth: config.AuthConfig{
				Mode: config.AuthModeAPI,
				API:  config.APIAuthConfig{BaseURL: "https://api.example.com"},
			}},
			check: func(t *testing.T, backend any) {
				assert.IsType(t, &authapi.Client{}, backend)
			},
		},
		{
			name:    "api mode without base url",
			cfg:     AuthBackendConfig{Auth: config.AuthConfig{Mode: config.AuthModeAPI}},
			wantErr: "AUTH_API_BASE_URL",
		},
		{
			name: "api mode with unsupported scheme",
			cfg: AuthBackendConfig{Auth: config.AuthConfig{
				Mode: config.AuthModeAPI,
				API:  config.APIAuthConfig{BaseURL: "ftp://api.example.com"},
			}},
			wantErr: "create auth API backend",
		},
		{
			name: "mock mode in dev",
			cfg: AuthBackendConfig{IsDev: true, Auth: config.AuthConfig{
				Mode:    config.AuthModeMock,
				DevAuth: config.DevAuthConfig{Accounts: "ada@example.com:expert:pw"},
			}},
			check: func(t *testing.T, backend any) {
				assert.IsType(t, &devauth.Backend{}, backend)
			},
		},
		{
			name:    "mock mode outside dev",
			cfg:     AuthBackendConfig{Auth: config.AuthConfig{Mode: config.AuthModeMock}},
			wantErr: "DEV=true",
		},
		{
			name: "mock mode with bad accounts",
			cfg: AuthBackendConfig{IsDev: true, Auth: config.AuthConfig{
				Mode:    config.AuthModeMock,
				DevAuth: config.DevAuthConfig{Accounts: "ada@example.com"},
			}},
			wantErr: "parse dev accounts",
		},
		{
			name: "oidc mode with bad group map",
			cfg: AuthBackendConfig{Auth: config.AuthConfig{
				Mode: config.AuthModeOIDC,
				OIDC: config.OIDCConfig{
					ClientID:     "shell",
					DiscoveryURL: "https://login.example.com",
					GroupRoles:   "growers",
				},
			}},
			wantErr: "OIDC_GROUP_ROLES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Logger = discardLogger()
			backend, err := BuildAuthBackend(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, backend)
				return
			}
			require.NoError(t, err)
			tt.check(t, backend)
		})
	}
}
