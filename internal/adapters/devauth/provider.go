package devauth

// Package devauth provides a config-driven AuthBackend for local development.
// It compares configured plaintext secrets and is not a credential system.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

// DefaultSecret is the password of the seeded accounts.
const DefaultSecret = "dev"

var _ ports.AuthBackend = (*Backend)(nil)

// Account is a development login.
type Account struct {
	Email  string
	Name   string
	Role   domainauth.Role
	Secret string
}

// Config controls the dev backend. When Accounts is empty one account per role is seeded as
// <role>@dev.local with DefaultSecret.
type Config struct {
	Accounts []Account
}

type account struct {
	principal domainauth.Principal
	secret    string
}

// Backend implements ports.AuthBackend in memory. Tokens are random and live until revoked
// or the process exits.
type Backend struct {
	mu       sync.Mutex
	accounts map[string]account // by lowercase email
	tokens   map[string]string  // token -> lowercase email
}

// NewBackend constructs a dev backend from Config.
func NewBackend(cfg Config) (*Backend, error) {
	b := &Backend{
		accounts: make(map[string]account),
		tokens:   make(map[string]string),
	}

	accounts := cfg.Accounts
	if len(accounts) == 0 {
		for _, r := range domainauth.Roles() {
			accounts = append(accounts, Account{
				Email:  strings.ReplaceAll(string(r), "_", "-") + "@dev.local",
				Name:   "Dev " + r.Label(),
				Role:   r,
				Secret: DefaultSecret,
			})
		}
	}

	for _, a := range accounts {
		if err := b.add(a); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Backend) add(a Account) error {
	key := strings.ToLower(strings.TrimSpace(a.Email))
	if key == "" {
		return errors.New("dev auth: email is required")
	}
	if !a.Role.Valid() {
		return fmt.Errorf("dev auth: account %s: %w: %q", key, domainauth.ErrUnknownRole, a.Role)
	}
	if a.Secret == "" {
		return fmt.Errorf("dev auth: account %s: secret is required", key)
	}
	if _, exists := b.accounts[key]; exists {
		return fmt.Errorf("dev auth: duplicate account %s", key)
	}
	name := a.Name
	if name == "" {
		name = key
	}
	b.accounts[key] = account{
		principal: domainauth.Principal{
			ID:    "dev-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String(),
			Email: key,
			Name:  name,
			Role:  a.Role,
		},
		secret: a.Secret,
	}
	return nil
}

func (b *Backend) FetchProfile(_ context.Context, token string) (domainauth.Principal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.tokens[token]
	if !ok {
		return domainauth.Principal{}, fmt.Errorf("%w: unknown token", domainauth.ErrUnauthorized)
	}
	return b.accounts[email].principal, nil
}

func (b *Backend) ExchangeCredentials(_ context.Context, identifier, secret string) (domainauth.Credentials, error) {
	key := strings.ToLower(strings.TrimSpace(identifier))

	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[key]
	if !ok || acct.secret != secret {
		return domainauth.Credentials{}, fmt.Errorf("%w: invalid email or password", domainauth.ErrUnauthorized)
	}
	return b.issueLocked(key, acct.principal)
}

func (b *Backend) RegisterAccount(_ context.Context, reg domainauth.Registration) (domainauth.Credentials, error) {
	if err := reg.Validate(); err != nil {
		return domainauth.Credentials{}, fmt.Errorf("%w: %w", domainauth.ErrRejected, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(reg.Email))
	if _, exists := b.accounts[key]; exists {
		return domainauth.Credentials{}, fmt.Errorf("%w: an account for %s already exists", domainauth.ErrRejected, key)
	}
	if err := b.add(Account{Email: key, Name: reg.Name, Role: reg.Role, Secret: reg.Password}); err != nil {
		return domainauth.Credentials{}, fmt.Errorf("%w: %w", domainauth.ErrRejected, err)
	}
	return b.issueLocked(key, b.accounts[key].principal)
}

func (b *Backend) RevokeSession(_ context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
	return nil
}

func (b *Backend) issueLocked(email string, p domainauth.Principal) (domainauth.Credentials, error) {
	suffix, err := randomString(24)
	if err != nil {
		return domainauth.Credentials{}, fmt.Errorf("generate token: %w", err)
	}
	token := "dev." + uuid.NewString() + "." + suffix
	b.tokens[token] = email
	return domainauth.Credentials{Token: token, Principal: p}, nil
}

// ParseAccounts parses "email:role:secret" entries separated by commas.
func ParseAccounts(s string) ([]Account, error) {
	var out []Account
	for entry := range strings.SplitSeq(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid dev account %q: want email:role:secret", entry)
		}
		role, err := domainauth.ParseRole(parts[1])
		if err != nil {
			return nil, fmt.Errorf("dev account %s: %w", parts[0], err)
		}
		out = append(out, Account{Email: parts[0], Role: role, Secret: parts[2]})
	}
	return out, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}
