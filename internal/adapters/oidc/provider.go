package oidc

// Package oidc provides an OIDC/OAuth2 authentication backend for agrimarket.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

const defaultRoleClaim = "roles"

var _ ports.AuthBackend = (*Backend)(nil)

// Backend implements ports.AuthBackend against an OpenID Connect provider. Login uses the
// resource-owner password grant; profiles come from the ID token or the userinfo endpoint.
type Backend struct {
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider  *gooidc.Provider
	verifier      *gooidc.IDTokenVerifier
	userInfoURL   string
	revocationURL string

	roleClaim string
	roles     ports.RoleMapper
}

// Config holds configuration for the OIDC backend.
type Config struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	// RoleClaim names the claim carrying the marketplace role or provider groups.
	RoleClaim  string
	Roles      ports.RoleMapper
	HTTPClient *http.Client // Optional, defaults to a client with a 30s timeout
}

// DiscoveryDocument is the subset of the OIDC discovery document the backend reads.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
}

// NewBackend performs discovery and returns a configured backend.
func NewBackend(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}
	if cfg.Roles == nil {
		return nil, errors.New("role mapper is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := strings.TrimSuffix(cfg.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	var doc DiscoveryDocument
	if claimsErr := op.Claims(&doc); claimsErr != nil {
		return nil, fmt.Errorf("decode discovery document: %w", claimsErr)
	}

	roleClaim := cfg.RoleClaim
	if roleClaim == "" {
		roleClaim = defaultRoleClaim
	}

	return &Backend{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     op.Endpoint(),
		},
		httpClient:    httpClient,
		oidcProvider:  op,
		verifier:      op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		userInfoURL:   op.UserInfoEndpoint(),
		revocationURL: doc.RevocationEndpoint,
		roleClaim:     roleClaim,
		roles:         cfg.Roles,
	}, nil
}

func (b *Backend) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}

// ExchangeCredentials trades an email and password for an access token using the password grant.
func (b *Backend) ExchangeCredentials(ctx context.Context, identifier, secret string) (domainauth.Credentials, error) {
	tok, err := b.config.PasswordCredentialsToken(b.clientContext(ctx), identifier, secret)
	if err != nil {
		return domainauth.Credentials{}, classifyTokenError(err)
	}
	if tok.AccessToken == "" {
		return domainauth.Credentials{}, fmt.Errorf("%w: token response without access_token", domainauth.ErrMalformedResponse)
	}

	claims, err := b.claimsFromIDToken(ctx, tok)
	if err != nil {
		return domainauth.Credentials{}, err
	}
	if claims == nil {
		p, fetchErr := b.FetchProfile(ctx, tok.AccessToken)
		if fetchErr != nil {
			return domainauth.Credentials{}, fetchErr
		}
		return domainauth.Credentials{Token: tok.AccessToken, Principal: p}, nil
	}

	p, err := b.principalFromClaims(claims)
	if err != nil {
		return domainauth.Credentials{}, err
	}
	return domainauth.Credentials{Token: tok.AccessToken, Principal: p}, nil
}

// FetchProfile reads the userinfo endpoint with token as bearer.
func (b *Backend) FetchProfile(ctx context.Context, token string) (domainauth.Principal, error) {
	if b.userInfoURL == "" {
		return domainauth.Principal{}, errors.New("provider does not advertise a userinfo endpoint")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.userInfoURL, nil)
	if err != nil {
		return domainauth.Principal{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return domainauth.Principal{}, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domainauth.Principal{}, transportError(err)
	}
	if statusErr := classifyStatus(resp.StatusCode, body); statusErr != nil {
		return domainauth.Principal{}, statusErr
	}

	var claims map[string]any
	if err := json.Unmarshal(body, &claims); err != nil {
		return domainauth.Principal{}, fmt.Errorf("%w: decode userinfo: %w", domainauth.ErrMalformedResponse, err)
	}
	return b.principalFromClaims(claims)
}

// RegisterAccount is not available through an identity provider.
func (b *Backend) RegisterAccount(context.Context, domainauth.Registration) (domainauth.Credentials, error) {
	return domainauth.Credentials{}, fmt.Errorf("%w: registration is handled by the identity provider", domainauth.ErrRejected)
}

// RevokeSession calls the RFC 7009 revocation endpoint when the provider advertises one.
func (b *Backend) RevokeSession(ctx context.Context, token string) error {
	if b.revocationURL == "" {
		return nil
	}

	form := url.Values{"token": {token}, "token_type_hint": {"access_token"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(b.config.ClientID), url.QueryEscape(b.config.ClientSecret))

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	return classifyStatus(resp.StatusCode, body)
}

// claimsFromIDToken verifies and decodes the id_token when the response carries one.
// It returns nil claims when there is no id_token.
func (b *Backend) claimsFromIDToken(ctx context.Context, tok *oauth2.Token) (map[string]any, error) {
	if !b.hasOpenIDScope() {
		return nil, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return nil, nil //nolint:nilerr // providers may omit id_token on the password grant
	}
	idTok, err := b.verifier.Verify(gooidc.ClientContext(ctx, b.httpClient), rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: verify id_token: %w", domainauth.ErrMalformedResponse, err)
	}
	var claims map[string]any
	if err := idTok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: parse id_token claims: %w", domainauth.ErrMalformedResponse, err)
	}
	return claims, nil
}

func (b *Backend) principalFromClaims(claims map[string]any) (domainauth.Principal, error) {
	p := domainauth.Principal{
		ID:    firstNonEmpty(stringClaim(claims, "sub"), stringClaim(claims, "samaccountname")),
		Email: firstNonEmpty(stringClaim(claims, "email"), stringClaim(claims, "mail")),
		Name:  firstNonEmpty(stringClaim(claims, "name"), joinName(claims)),
	}

	values := stringsClaim(claims, b.roleClaim)
	values = append(values, stringsClaim(claims, "groups")...)
	role, ok := b.roles.Map(values)
	if !ok {
		return domainauth.Principal{}, fmt.Errorf("%w: no marketplace role in claim %q", domainauth.ErrMalformedResponse, b.roleClaim)
	}
	p.Role = role

	if err := p.Validate(); err != nil {
		return domainauth.Principal{}, fmt.Errorf("%w: %w", domainauth.ErrMalformedResponse, err)
	}
	return p, nil
}

func (b *Backend) hasOpenIDScope() bool {
	return slices.Contains(b.config.Scopes, "openid")
}

// classifyTokenError maps a token endpoint failure onto the backend error taxonomy.
func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		switch code := re.Response.StatusCode; {
		case code == http.StatusBadRequest || code == http.StatusUnauthorized:
			// invalid_grant is how providers report a wrong password.
			return fmt.Errorf("%w: %s", domainauth.ErrUnauthorized, describeRetrieveError(re))
		case code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: token endpoint returned %d", domainauth.ErrTransient, code)
		default:
			return fmt.Errorf("%w: %s", domainauth.ErrRejected, describeRetrieveError(re))
		}
	}
	return transportError(err)
}

func describeRetrieveError(re *oauth2.RetrieveError) string {
	if re.ErrorDescription != "" {
		return re.ErrorDescription
	}
	if re.ErrorCode != "" {
		return re.ErrorCode
	}
	return re.Response.Status
}

func classifyStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: provider returned %d", domainauth.ErrUnauthorized, code)
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: provider returned %d", domainauth.ErrTransient, code)
	default:
		return fmt.Errorf("%w: provider returned %d: %s", domainauth.ErrRejected, code, strings.TrimSpace(string(body)))
	}
}

func transportError(err error) error {
	return fmt.Errorf("%w: %w", domainauth.ErrTransient, err)
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// stringsClaim reads a claim that may be a single string or a list of strings.
func stringsClaim(claims map[string]any, key string) []string {
	switch v := claims[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func joinName(claims map[string]any) string {
	given := firstNonEmpty(stringClaim(claims, "given_name"), stringClaim(claims, "firstname"))
	family := firstNonEmpty(stringClaim(claims, "family_name"), stringClaim(claims, "lastname"))
	return strings.TrimSpace(given + " " + family)
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
