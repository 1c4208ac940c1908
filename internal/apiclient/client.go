package apiclient

// Package apiclient is the single path for authenticated calls to the marketplace API.
// Every response passes through it, so a rejected credential is noticed in one place.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	obserrors "github.com/agrimarket/agrimarket-ui/internal/observability/errors"
)

const (
	defaultTimeout  = 20 * time.Second
	maxErrorSnippet = 512
)

// Session is the part of the session manager the client needs.
type Session interface {
	Token() string
	Revalidate(ctx context.Context) (domainauth.Session, error)
}

// Signaler receives credential rejections.
type Signaler interface {
	Signal(ctx context.Context, token string) bool
}

// RequestObserver records the outcome of each request.
type RequestObserver interface {
	ObserveRequest(err error)
}

// Options groups dependencies for Client.
type Options struct {
	BaseURL      string
	Sessions     Session
	Unauthorized Signaler
	// Transport is the base round tripper; defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Timeout   time.Duration
	Metrics   RequestObserver
	Logger    *slog.Logger
}

// Client sends authenticated requests to the marketplace API.
type Client struct {
	base         *url.URL
	sessions     Session
	unauthorized Signaler
	transport    http.RoundTripper
	jar          http.CookieJar
	timeout      time.Duration
	metrics      RequestObserver
	logger       *slog.Logger
}

// TransportError reports a request that produced no HTTP response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap exposes both the cause and domainauth.ErrTransient.
func (e *TransportError) Unwrap() []error { return []error{domainauth.ErrTransient, e.Err} }

// StatusError reports a non-2xx response other than 401.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap classifies 5xx as transient and everything else as rejected.
func (e *StatusError) Unwrap() error {
	if e.StatusCode >= http.StatusInternalServerError {
		return domainauth.ErrTransient
	}
	return domainauth.ErrRejected
}

// New constructs a Client.
func New(opts Options) (*Client, error) {
	if opts.Sessions == nil {
		return nil, errors.New("sessions is required")
	}
	if opts.Unauthorized == nil {
		return nil, errors.New("unauthorized channel is required")
	}
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", opts.BaseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		base:         base,
		sessions:     opts.Sessions,
		unauthorized: opts.Unauthorized,
		transport:    opts.Transport,
		jar:          jar,
		timeout:      opts.Timeout,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
	if c.transport == nil {
		c.transport = http.DefaultTransport
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// URL resolves path against the API base URL.
func (c *Client) URL(path string) string {
	return c.base.JoinPath(path).String()
}

// Do sends req with the current bearer credential. A 2xx response is returned for the caller
// to consume and close. A 401 ends the session through the unauthorized channel and returns
// domainauth.ErrUnauthorized; other failures return *TransportError or *StatusError.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.do(ctx, req)
	if c.metrics != nil {
		c.metrics.ObserveRequest(err)
	}
	if err != nil {
		c.logger.DebugContext(ctx, "api request failed",
			"method", req.Method, "url", req.URL.String(), "error_class", obserrors.Classify(err), "error", err)
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if _, err := c.sessions.Revalidate(ctx); err != nil {
		c.logger.DebugContext(ctx, "session revalidation before request failed", "error", err)
	}

	token := c.sessions.Token()
	if token == "" {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, domainauth.ErrNoCredentials)
	}

	req = req.Clone(ctx)
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	hc := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.transport,
		},
		Jar:     c.jar,
		Timeout: c.timeout,
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Only ends the session if token is still the current credential.
		c.unauthorized.Signal(ctx, token)
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, domainauth.ErrUnauthorized)
	}
	return nil, &StatusError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
}

// GetJSON fetches path and decodes the JSON body into dst.
func (c *Client) GetJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", domainauth.ErrMalformedResponse, path, err)
	}
	return nil
}
