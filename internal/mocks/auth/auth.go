package auth

// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight, safe for concurrent use, and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthBackend     = (*FakeBackend)(nil)
	_ ports.CredentialStore = (*MemoryCredentialStore)(nil)
	_ ports.Navigator       = (*RecordingNavigator)(nil)
	_ ports.SessionMetrics  = (*RecordingMetrics)(nil)
)

// FakeBackend simulates the remote authentication service.
// Func fields override the default behavior, which accepts DefaultCreds for any input.
type FakeBackend struct {
	FetchProfileFunc func(ctx context.Context, token string) (domainauth.Principal, error)
	ExchangeFunc     func(ctx context.Context, identifier, secret string) (domainauth.Credentials, error)
	RegisterFunc     func(ctx context.Context, reg domainauth.Registration) (domainauth.Credentials, error)
	RevokeFunc       func(ctx context.Context, token string) error

	DefaultCreds domainauth.Credentials

	mu    sync.Mutex
	calls map[string]int
}

// NewFakeBackend creates a FakeBackend with a farmer principal.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		DefaultCreds: domainauth.Credentials{
			Token: "mock-token-1",
			Principal: domainauth.Principal{
				ID:    "mock-user-1",
				Email: "mock.farmer@example.com",
				Name:  "Mock Farmer",
				Role:  domainauth.RoleFarmer,
			},
		},
	}
}

func (b *FakeBackend) record(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls == nil {
		b.calls = make(map[string]int)
	}
	b.calls[op]++
}

// Calls returns how many times op was invoked ("fetch", "exchange", "register", "revoke").
func (b *FakeBackend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// TotalCalls returns the number of backend invocations of any kind.
func (b *FakeBackend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

func (b *FakeBackend) FetchProfile(ctx context.Context, token string) (domainauth.Principal, error) {
	b.record("fetch")
	if b.FetchProfileFunc != nil {
		return b.FetchProfileFunc(ctx, token)
	}
	if token != b.DefaultCreds.Token {
		return domainauth.Principal{}, domainauth.ErrUnauthorized
	}
	return b.DefaultCreds.Principal, nil
}

func (b *FakeBackend) ExchangeCredentials(ctx context.Context, identifier, secret string) (domainauth.Credentials, error) {
	b.record("exchange")
	if b.ExchangeFunc != nil {
		return b.ExchangeFunc(ctx, identifier, secret)
	}
	return b.DefaultCreds, nil
}

func (b *FakeBackend) RegisterAccount(ctx context.Context, reg domainauth.Registration) (domainauth.Credentials, error) {
	b.record("register")
	if b.RegisterFunc != nil {
		return b.RegisterFunc(ctx, reg)
	}
	creds := b.DefaultCreds
	creds.Principal.Email = reg.Email
	creds.Principal.Name = reg.Name
	creds.Principal.Role = reg.Role
	return creds, nil
}

func (b *FakeBackend) RevokeSession(ctx context.Context, token string) error {
	b.record("revoke")
	if b.RevokeFunc != nil {
		return b.RevokeFunc(ctx, token)
	}
	return nil
}

// MemoryCredentialStore is an in-memory credential store for unit tests.
type MemoryCredentialStore struct {
	mu     sync.Mutex
	creds  *domainauth.Credentials
	saves  int
	clears int

	// SaveErr and ClearErr, when set, are returned by Save and Clear.
	SaveErr  error
	ClearErr error
}

// NewMemoryCredentialStore creates an empty store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

// NewMemoryCredentialStoreWith creates a store pre-seeded with creds.
func NewMemoryCredentialStoreWith(creds domainauth.Credentials) *MemoryCredentialStore {
	return &MemoryCredentialStore{creds: &creds}
}

func (m *MemoryCredentialStore) Load(_ context.Context) (domainauth.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return domainauth.Credentials{}, domainauth.ErrNoCredentials
	}
	if m.creds.Token == "" || m.creds.Principal.Validate() != nil {
		return domainauth.Credentials{}, domainauth.ErrCorruptCredentials
	}
	return *m.creds, nil
}

func (m *MemoryCredentialStore) Save(_ context.Context, creds domainauth.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if err := creds.Validate(); err != nil {
		return errors.Join(errors.New("refusing to save partial credentials"), err)
	}
	m.creds = &creds
	m.saves++
	return nil
}

func (m *MemoryCredentialStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.creds = nil
	return nil
}

// Snapshot returns the stored pair and whether one is present.
func (m *MemoryCredentialStore) Snapshot() (domainauth.Credentials, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return domainauth.Credentials{}, false
	}
	return *m.creds, true
}

// SetRaw overwrites the stored pair without validation, to simulate corruption.
func (m *MemoryCredentialStore) SetRaw(creds domainauth.Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = &creds
}

// Counts returns the number of successful saves and attempted clears.
func (m *MemoryCredentialStore) Counts() (saves, clears int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves, m.clears
}

// RecordingNavigator records navigation requests.
type RecordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *RecordingNavigator) Navigate(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

// Paths returns a copy of the recorded destinations.
func (n *RecordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// RecordingMetrics records observed session events.
type RecordingMetrics struct {
	mu           sync.Mutex
	Operations   map[string]int
	Phases       []domainauth.Phase
	Unauthorized int
}

func (r *RecordingMetrics) ObserveOperation(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Operations == nil {
		r.Operations = make(map[string]int)
	}
	r.Operations[op+":"+outcome]++
}

func (r *RecordingMetrics) ObservePhase(phase domainauth.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Phases = append(r.Phases, phase)
}

func (r *RecordingMetrics) ObserveUnauthorized() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Unauthorized++
}

// Count returns how often op finished with outcome.
func (r *RecordingMetrics) Count(op, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Operations[op+":"+outcome]
}
