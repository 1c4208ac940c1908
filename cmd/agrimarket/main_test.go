package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimarket/agrimarket-ui/config"
	"github.com/agrimarket/agrimarket-ui/internal/bootstrap"
	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	authmocks "github.com/agrimarket/agrimarket-ui/internal/mocks/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

type cliFixture struct {
	backend *authmocks.FakeBackend
	store   *authmocks.MemoryCredentialStore
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	ctx     *commandContext
}

func newCLI(t *testing.T, signedIn bool, apiURL string) *cliFixture {
	t.Helper()
	f := &cliFixture{
		backend: authmocks.NewFakeBackend(),
		store:   authmocks.NewMemoryCredentialStore(),
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
	}
	if signedIn {
		f.store = authmocks.NewMemoryCredentialStoreWith(f.backend.DefaultCreds)
	}

	cfg := config.AppConfig{
		IsDev: true,
		Auth:  config.AuthConfig{Mode: config.AuthModeMock},
		Store: config.StoreConfig{Kind: config.StoreKindMemory},
		HTTP:  config.HTTPConfig{APIBaseURL: apiURL},
	}
	cfg.Sanitize()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.ctx = &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Stdin:  strings.NewReader(""),
		Stdout: f.stdout,
		Stderr: f.stderr,
		newApp: func(c *commandContext, nav ports.Navigator) (*bootstrap.App, error) {
			return bootstrap.NewApp(c.Ctx, bootstrap.AppDeps{
				Config:    &c.Config,
				Navigator: nav,
				Logger:    logger,
				Backend:   f.backend,
				Store:     f.store,
			})
		},
	}
	return f
}

func TestPrintUsageListsCommandsSorted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	out := buf.String()

	for name := range commands() {
		assert.Contains(t, out, "  "+name)
	}
	assert.Less(t, strings.Index(out, "authorize"), strings.Index(out, "whoami"))
}

func TestLogin(t *testing.T) {
	f := newCLI(t, false, "")
	f.ctx.Stdin = strings.NewReader("s3cret\n")

	var gotSecret string
	f.backend.ExchangeFunc = func(_ context.Context, _, secret string) (domainauth.Credentials, error) {
		gotSecret = secret
		return f.backend.DefaultCreds, nil
	}

	err := runLogin(f.ctx, []string{"--email", "mock.farmer@example.com", "--password-stdin"})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", gotSecret)
	assert.Contains(t, f.stdout.String(), "Signed in as Mock Farmer (Farmer). Your dashboard: /farmer-dashboard")
	stored, ok := f.store.Snapshot()
	require.True(t, ok)
	assert.Equal(t, f.backend.DefaultCreds, stored)
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing email", args: []string{"--password", "pw"}, wantErr: "--email is required"},
		{
			name:    "both password sources",
			args:    []string{"--email", "a@example.com", "--password", "pw", "--password-stdin"},
			wantErr: "mutually exclusive",
		},
		{name: "empty password", args: []string{"--email", "a@example.com"}, wantErr: "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCLI(t, false, "")
			err := runLogin(f.ctx, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, 0, f.backend.Calls("exchange"))
		})
	}
}

func TestLogin_RejectedLeavesStoreEmpty(t *testing.T) {
	f := newCLI(t, false, "")
	f.backend.ExchangeFunc = func(context.Context, string, string) (domainauth.Credentials, error) {
		return domainauth.Credentials{}, domainauth.ErrUnauthorized
	}

	err := runLogin(f.ctx, []string{"--email", "a@example.com", "--password", "wrong"})
	require.Error(t, err)
	_, ok := f.store.Snapshot()
	assert.False(t, ok)
	assert.Empty(t, f.stdout.String())
}

func TestRegister(t *testing.T) {
	f := newCLI(t, false, "")

	err := runRegister(f.ctx, []string{
		"--email", "ada@example.com", "--password", "pw", "--name", "Ada", "--role", "expert",
	})
	require.NoError(t, err)
	assert.Contains(t, f.stdout.String(), "Signed in as Ada (Expert). Your dashboard: /expert-dashboard")
	assert.Equal(t, 1, f.backend.Calls("register"))
}

func TestRegister_InvalidRole(t *testing.T) {
	f := newCLI(t, false, "")

	err := runRegister(f.ctx, []string{
		"--email", "ada@example.com", "--password", "pw", "--name", "Ada", "--role", "admin",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid roles: farmer, buyer")
	assert.Equal(t, 0, f.backend.TotalCalls())
}

func TestLogout(t *testing.T) {
	t.Run("signed in", func(t *testing.T) {
		f := newCLI(t, true, "")
		require.NoError(t, runLogout(f.ctx, nil))
		assert.Equal(t, "Signed out.\n", f.stdout.String())
		assert.Equal(t, 1, f.backend.Calls("revoke"))
		_, ok := f.store.Snapshot()
		assert.False(t, ok)
	})

	t.Run("not signed in", func(t *testing.T) {
		f := newCLI(t, false, "")
		require.NoError(t, runLogout(f.ctx, nil))
		assert.Equal(t, "Not signed in.\n", f.stdout.String())
		assert.Equal(t, 0, f.backend.Calls("revoke"))
	})
}

func TestWhoami(t *testing.T) {
	f := newCLI(t, true, "")
	require.NoError(t, runWhoami(f.ctx, nil))

	out := f.stdout.String()
	assert.Contains(t, out, "Mock Farmer")
	assert.Contains(t, out, "mock.farmer@example.com")
	assert.Contains(t, out, "/farmer-dashboard")
	assert.Equal(t, 1, f.backend.Calls("fetch"))
}

func TestWhoami_JSON(t *testing.T) {
	f := newCLI(t, true, "")
	require.NoError(t, runWhoami(f.ctx, []string{"--json"}))

	var body map[string]any
	require.NoError(t, json.Unmarshal(f.stdout.Bytes(), &body))
	assert.Equal(t, "authenticated", body["phase"])
	assert.NotContains(t, f.stdout.String(), "mock-token-1")
}

func TestWhoami_NotSignedIn(t *testing.T) {
	f := newCLI(t, false, "")
	require.NoError(t, runWhoami(f.ctx, nil))
	assert.Contains(t, f.stdout.String(), "Not signed in")
	assert.Equal(t, 0, f.backend.TotalCalls())
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name     string
		signedIn bool
		path     string
		want     string
	}{
		{name: "own dashboard", signedIn: true, path: "/farmer-dashboard", want: "allow: /farmer-dashboard"},
		{name: "shared page", signedIn: true, path: "/marketplace", want: "allow: /marketplace"},
		{
			name:     "other role",
			signedIn: true,
			path:     "/buyer-dashboard",
			want:     "deny: /buyer-dashboard requires buyer; you are signed in as farmer. Go to /farmer-dashboard",
		},
		{
			name: "signed out",
			path: "/farmer-dashboard",
			want: "redirect: sign in first (/auth?redirect_uri=%2Ffarmer-dashboard)",
		},
		{name: "dashboard alias", signedIn: true, path: "/dashboard", want: "allow: /dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCLI(t, tt.signedIn, "")
			require.NoError(t, runAuthorize(f.ctx, []string{tt.path}))
			assert.Contains(t, f.stdout.String(), tt.want)
		})
	}
}

func TestAuthorize_JSON(t *testing.T) {
	f := newCLI(t, true, "")
	require.NoError(t, runAuthorize(f.ctx, []string{"--json", "/expert-dashboard"}))

	var body map[string]any
	require.NoError(t, json.Unmarshal(f.stdout.Bytes(), &body))
	assert.Equal(t, "deny", body["outcome"])
	assert.Equal(t, "farmer", body["current_role"])
	assert.Equal(t, "/farmer-dashboard", body["corrective_path"])
}

func TestAuthorize_Errors(t *testing.T) {
	f := newCLI(t, true, "")
	assert.Error(t, runAuthorize(f.ctx, nil))

	err := runAuthorize(f.ctx, []string{"/admin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown path")
	assert.Equal(t, 0, f.backend.TotalCalls())
}

func TestDashboard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/farmer/summary" || r.Header.Get("Authorization") != "Bearer mock-token-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"active_listings": 4, "open_orders": 2}`))
	}))
	t.Cleanup(srv.Close)

	f := newCLI(t, true, srv.URL)
	require.NoError(t, runDashboard(f.ctx, nil))

	out := f.stdout.String()
	assert.Contains(t, out, "Farmer Dashboard")
	assert.Contains(t, out, "active_listings")
	assert.Less(t, strings.Index(out, "active_listings"), strings.Index(out, "open_orders"))
}

func TestDashboard_UnauthorizedSignsOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	f := newCLI(t, true, srv.URL)
	err := runDashboard(f.ctx, nil)
	require.ErrorIs(t, err, errNotSignedIn)

	_, ok := f.store.Snapshot()
	assert.False(t, ok)
	assert.Contains(t, f.stderr.String(), "agrimarket login")
}

func TestDashboard_Errors(t *testing.T) {
	f := newCLI(t, false, "")
	assert.ErrorIs(t, runDashboard(f.ctx, nil), errNotSignedIn)

	f = newCLI(t, true, "")
	err := runDashboard(f.ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARKETPLACE_API_URL")
}

func TestReadSecret(t *testing.T) {
	secret, err := readSecret(loginOptions{Password: "pw"}, strings.NewReader("ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "pw", secret)

	secret, err = readSecret(loginOptions{PasswordStdin: true}, strings.NewReader("line\r\nmore"))
	require.NoError(t, err)
	assert.Equal(t, "line", secret)

	secret, err = readSecret(loginOptions{PasswordStdin: true}, strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", secret)
}
