package authapi

// Package authapi implements ports.AuthBackend against the marketplace REST API.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/net/publicsuffix"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

const (
	DefaultLoginPath    = "/auth/login"
	DefaultRegisterPath = "/auth/register"
	DefaultProfilePath  = "/auth/me"
	DefaultLogoutPath   = "/auth/logout"

	// DefaultTokenExpr finds the bearer token in common response shapes.
	DefaultTokenExpr = "token || access_token || data.token || data.access_token"
	// DefaultPrincipalExpr finds the user object in common response shapes.
	DefaultPrincipalExpr = "user || data.user || profile || data || @"

	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

var _ ports.AuthBackend = (*Client)(nil)

// Config configures the REST backend.
type Config struct {
	BaseURL string

	LoginPath    string
	RegisterPath string
	ProfilePath  string
	LogoutPath   string

	// TokenExpr and PrincipalExpr are JMESPath expressions applied to response bodies.
	TokenExpr     string
	PrincipalExpr string

	HTTPClient *http.Client  // Optional; defaults to a client with a cookie jar
	Timeout    time.Duration // Used only when HTTPClient is nil
}

// Client talks to the authentication endpoints of the marketplace API.
type Client struct {
	base          *url.URL
	paths         endpoints
	tokenExpr     string
	principalExpr string
	httpClient    *http.Client
}

type endpoints struct {
	login, register, profile, logout string
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", cfg.BaseURL)
	}

	c := &Client{
		base: base,
		paths: endpoints{
			login:    orDefault(cfg.LoginPath, DefaultLoginPath),
			register: orDefault(cfg.RegisterPath, DefaultRegisterPath),
			profile:  orDefault(cfg.ProfilePath, DefaultProfilePath),
			logout:   orDefault(cfg.LogoutPath, DefaultLogoutPath),
		},
		tokenExpr:     orDefault(cfg.TokenExpr, DefaultTokenExpr),
		principalExpr: orDefault(cfg.PrincipalExpr, DefaultPrincipalExpr),
		httpClient:    cfg.HTTPClient,
	}
	for _, expr := range []string{c.tokenExpr, c.principalExpr} {
		if _, compileErr := jmespath.Compile(expr); compileErr != nil {
			return nil, fmt.Errorf("invalid JMESPath expression %q: %w", expr, compileErr)
		}
	}

	if c.httpClient == nil {
		jar, jarErr := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if jarErr != nil {
			return nil, fmt.Errorf("create cookie jar: %w", jarErr)
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}
	return c, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) ExchangeCredentials(ctx context.Context, identifier, secret string) (domainauth.Credentials, error) {
	body, err := c.call(ctx, callParams{method: http.MethodPost, path: c.paths.login, payload: loginRequest{Email: identifier, Password: secret}})
	if err != nil {
		return domainauth.Credentials{}, err
	}
	return c.credentialsFrom(body)
}

func (c *Client) RegisterAccount(ctx context.Context, reg domainauth.Registration) (domainauth.Credentials, error) {
	body, err := c.call(ctx, callParams{method: http.MethodPost, path: c.paths.register, payload: reg})
	if err != nil {
		return domainauth.Credentials{}, err
	}
	return c.credentialsFrom(body)
}

func (c *Client) FetchProfile(ctx context.Context, token string) (domainauth.Principal, error) {
	body, err := c.call(ctx, callParams{method: http.MethodGet, path: c.paths.profile, token: token, profile: true})
	if err != nil {
		return domainauth.Principal{}, err
	}
	return c.principalFrom(body)
}

func (c *Client) RevokeSession(ctx context.Context, token string) error {
	_, err := c.call(ctx, callParams{method: http.MethodPost, path: c.paths.logout, token: token})
	return err
}

type callParams struct {
	method  string
	path    string
	token   string
	payload any
	// profile marks a credential check, where any 401/403 means the token is no longer valid.
	profile bool
}

// call performs one request and returns the decoded JSON body (nil when empty).
func (c *Client) call(ctx context.Context, p callParams) (any, error) {
	var reader io.Reader
	if p.payload != nil {
		buf, err := json.Marshal(p.payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, p.method, c.base.JoinPath(p.path).String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", domainauth.ErrTransient, p.method, p.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domainauth.ErrTransient, err)
	}

	var body any
	if len(bytes.TrimSpace(raw)) > 0 {
		if jsonErr := json.Unmarshal(raw, &body); jsonErr != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("%w: decode response: %w", domainauth.ErrMalformedResponse, jsonErr)
		}
	}

	if statusErr := classify(resp.StatusCode, p.profile, serverMessage(body)); statusErr != nil {
		return nil, statusErr
	}
	return body, nil
}

// classify maps an HTTP status to the backend error taxonomy.
func classify(code int, profile bool, msg string) error {
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, profile && code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domainauth.ErrUnauthorized, msg)
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: server returned %d: %s", domainauth.ErrTransient, code, msg)
	default:
		return fmt.Errorf("%w: %s", domainauth.ErrRejected, msg)
	}
}

// serverMessage extracts a human readable error from a response body.
func serverMessage(body any) string {
	if body == nil {
		return ""
	}
	v, err := jmespath.Search("message || error.message || error || detail", body)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (c *Client) credentialsFrom(body any) (domainauth.Credentials, error) {
	v, err := jmespath.Search(c.tokenExpr, body)
	if err != nil {
		return domainauth.Credentials{}, fmt.Errorf("%w: token expression: %w", domainauth.ErrMalformedResponse, err)
	}
	token, _ := v.(string)
	if token == "" {
		return domainauth.Credentials{}, fmt.Errorf("%w: response has no token", domainauth.ErrMalformedResponse)
	}

	p, err := c.principalFrom(body)
	if err != nil {
		return domainauth.Credentials{}, err
	}
	return domainauth.Credentials{Token: token, Principal: p}, nil
}

func (c *Client) principalFrom(body any) (domainauth.Principal, error) {
	v, err := jmespath.Search(c.principalExpr, body)
	if err != nil {
		return domainauth.Principal{}, fmt.Errorf("%w: principal expression: %w", domainauth.ErrMalformedResponse, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return domainauth.Principal{}, fmt.Errorf("%w: response has no user object", domainauth.ErrMalformedResponse)
	}

	p := domainauth.Principal{
		ID:    firstString(obj, "id", "_id", "user_id", "sub"),
		Email: firstString(obj, "email"),
		Name:  firstString(obj, "name", "full_name", "fullName"),
	}
	role, err := domainauth.ParseRole(firstString(obj, "role", "user_type", "userType"))
	if err != nil {
		return domainauth.Principal{}, fmt.Errorf("%w: %w", domainauth.ErrMalformedResponse, err)
	}
	p.Role = role

	if err := p.Validate(); err != nil {
		return domainauth.Principal{}, fmt.Errorf("%w: %w", domainauth.ErrMalformedResponse, err)
	}
	return p, nil
}

// firstString returns the first key of obj holding a string or number, rendered as a string.
func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
