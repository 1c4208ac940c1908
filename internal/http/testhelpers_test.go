package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	authmocks "github.com/agrimarket/agrimarket-ui/internal/mocks/auth"
	"github.com/agrimarket/agrimarket-ui/internal/service"
	"github.com/agrimarket/agrimarket-ui/internal/testutil"
)

const testCSRF = "test-csrf-token"

// staticSessions is a SessionSource with a settable snapshot.
type staticSessions struct {
	mu   sync.Mutex
	sess domainauth.Session
}

func (s *staticSessions) Session() domainauth.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

func (s *staticSessions) set(sess domainauth.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = sess
}

func requireRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	r, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: os.DirFS(TemplatePathFromTest)})
	require.NoError(t, err)
	return r
}

// shellFixture is a router over a real session manager and a fake auth backend.
type shellFixture struct {
	backend *authmocks.FakeBackend
	store   *authmocks.MemoryCredentialStore
	mgr     *service.SessionManager
	nav     *PendingNavigation
	handler http.Handler
}

type shellOptions struct {
	signedIn  bool
	summaries SummaryFetcher
	cache     SummaryCache
}

func newShell(t *testing.T, opts shellOptions) *shellFixture {
	t.Helper()
	backend := authmocks.NewFakeBackend()
	store := authmocks.NewMemoryCredentialStore()
	if opts.signedIn {
		store = authmocks.NewMemoryCredentialStoreWith(backend.DefaultCreds)
	}
	mgr, err := service.NewSessionManager(context.Background(), service.SessionManagerOptions{
		Backend: backend,
		Store:   store,
		Now:     testutil.FixedTimeFunc(testutil.TestTime()),
	})
	require.NoError(t, err)
	_, _ = mgr.Verify(context.Background())

	nav := &PendingNavigation{}
	h := NewRouter(RouterServices{
		Sessions:   mgr,
		Summaries:  opts.summaries,
		Cache:      opts.cache,
		Navigation: nav,
		Renderer:   requireRenderer(t),
	})
	return &shellFixture{backend: backend, store: store, mgr: mgr, nav: nav, handler: h}
}

func (f *shellFixture) get(path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "text/html")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *shellFixture) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set(DefaultCSRFFormField, testCSRF)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRF})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *shellFixture) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func principal(role domainauth.Role) *domainauth.Principal {
	p := testutil.Principal(role)
	return &p
}

func newFormRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRF})
	return req
}

func serveRequest(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
