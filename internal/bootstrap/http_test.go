package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	httpx "github.com/agrimarket/agrimarket-ui/internal/http"
	authmocks "github.com/agrimarket/agrimarket-ui/internal/mocks/auth"
)

func newTestApp(t *testing.T, store *authmocks.MemoryCredentialStore) *App {
	t.Helper()
	app, err := NewApp(context.Background(), AppDeps{
		Config:    testConfig(),
		Navigator: &httpx.PendingNavigation{},
		Logger:    discardLogger(),
		Backend:   authmocks.NewFakeBackend(),
		Store:     store,
	})
	require.NoError(t, err)
	return app
}

func TestBuildShellHandler(t *testing.T) {
	cfg := testConfig()
	cfg.IsDev = false
	cfg.Observability.MetricsEnabled = true

	app := newTestApp(t, authmocks.NewMemoryCredentialStore())
	handler, err := BuildShellHandler(ShellConfig{
		Config:     cfg,
		App:        app,
		Navigation: &httpx.PendingNavigation{},
		Logger:     discardLogger(),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "unchecked", body["session"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agrimarket_session_phase")

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth", nil)
	req.Header.Set("Accept", "text/html")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AgriMarket")
}

func TestBuildShellHandler_RequiresApp(t *testing.T) {
	_, err := BuildShellHandler(ShellConfig{Config: testConfig()})
	assert.Error(t, err)
}

func TestRunShell_VerifiesInBackgroundAndStops(t *testing.T) {
	store := authmocks.NewMemoryCredentialStoreWith(authmocks.NewFakeBackend().DefaultCreds)
	app := newTestApp(t, store)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunShell(ctx, ShellConfig{
			Config:     cfg,
			App:        app,
			Navigation: &httpx.PendingNavigation{},
			Logger:     discardLogger(),
			Listener:   ln,
		})
	}()

	require.Eventually(t, func() bool {
		return app.Sessions.Session().Phase == domainauth.PhaseAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"session":"authenticated"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not stop")
	}
}

func TestShutdownHTTPServer_NilServer(t *testing.T) {
	assert.NoError(t, ShutdownHTTPServer(ShutdownConfig{}))
}

func TestNewServerDefaultsAddr(t *testing.T) {
	srv := newServer(http.NotFoundHandler(), "")
	assert.Equal(t, "127.0.0.1:8080", srv.Addr)
}
