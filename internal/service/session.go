package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	apperrors "github.com/agrimarket/agrimarket-ui/internal/errors"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRevalidateInterval = 30 * time.Second
	defaultRevokeTimeout      = 3 * time.Second

	opVerify     = "verify"
	opRevalidate = "revalidate"
	opLogin      = "login"
	opRegister   = "register"
	opLogout     = "logout"
)

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Backend ports.AuthBackend
	Store   ports.CredentialStore
	Metrics ports.SessionMetrics
	Logger  *slog.Logger
	Now     func() time.Time

	// RevalidateInterval is the minimum gap between re-verification attempts of a stale session.
	RevalidateInterval time.Duration
	// RevokeTimeout bounds the best-effort revocation call made by Logout.
	RevokeTimeout time.Duration
}

// SessionManager owns the client session: it verifies the stored credential at startup,
// performs login, registration and logout, and publishes every state change to subscribers.
//
// All state and credential store mutation happens under a single mutex. Network calls run
// outside the lock; results are committed only if no login, registration or logout was
// committed in the meantime.
type SessionManager struct {
	backend ports.AuthBackend
	store   ports.CredentialStore
	metrics ports.SessionMetrics
	logger  *slog.Logger
	now     func() time.Time

	revalidateInterval time.Duration
	revokeTimeout      time.Duration

	mu          sync.Mutex
	state       domainauth.Session
	cached      *domainauth.Principal
	epoch       uint64
	verifyDone  bool
	loggingOut  bool
	lastAttempt time.Time
	subs        map[int]chan domainauth.Session
	nextSub     int

	flight singleflight.Group
}

// NewSessionManager constructs a SessionManager from the credential store's contents.
// The session starts Unchecked without a stored token and Checking with one.
func NewSessionManager(ctx context.Context, opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Backend == nil {
		return nil, errors.New("auth backend is required")
	}
	if opts.Store == nil {
		return nil, errors.New("credential store is required")
	}

	m := &SessionManager{
		backend:            opts.Backend,
		store:              opts.Store,
		metrics:            opts.Metrics,
		logger:             opts.Logger,
		now:                opts.Now,
		revalidateInterval: opts.RevalidateInterval,
		revokeTimeout:      opts.RevokeTimeout,
		subs:               make(map[int]chan domainauth.Session),
	}
	if m.metrics == nil {
		m.metrics = noopMetrics{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.revalidateInterval <= 0 {
		m.revalidateInterval = defaultRevalidateInterval
	}
	if m.revokeTimeout <= 0 {
		m.revokeTimeout = defaultRevokeTimeout
	}

	creds, err := m.store.Load(ctx)
	switch {
	case err == nil:
		p := creds.Principal
		m.cached = &p
		m.state = domainauth.Session{
			Token:     creds.Token,
			Phase:     domainauth.PhaseChecking,
			ExpiresAt: tokenExpiry(creds.Token),
		}
	case errors.Is(err, domainauth.ErrNoCredentials):
		m.state = domainauth.Session{Phase: domainauth.PhaseUnchecked}
	case errors.Is(err, domainauth.ErrCorruptCredentials):
		m.logger.WarnContext(ctx, "discarding partially stored credentials", "error", err)
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			return nil, fmt.Errorf("clear corrupt credentials: %w", clearErr)
		}
		m.state = domainauth.Session{Phase: domainauth.PhaseUnchecked}
	default:
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	m.metrics.ObservePhase(m.state.Phase)
	return m, nil
}

// Session returns a snapshot of the current session.
func (m *SessionManager) Session() domainauth.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Token returns the current bearer credential, or "" when none is held.
func (m *SessionManager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Token
}

// Subscribe returns a channel that receives the latest session snapshot after every change,
// starting with the current one. Slow readers only ever see the most recent snapshot.
// The returned func unsubscribes and closes the channel.
func (m *SessionManager) Subscribe() (<-chan domainauth.Session, func()) {
	ch := make(chan domainauth.Session, 1)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.snapshotLocked()
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Verify checks the stored credential against the profile endpoint. It runs once per
// lifecycle; later calls return the current snapshot without a network call.
//
// A connectivity failure keeps the token and cached principal (the session becomes stale)
// and is returned only for logging. A rejected credential or an unusable profile clears the
// session.
func (m *SessionManager) Verify(ctx context.Context) (domainauth.Session, error) {
	v, err, _ := m.flight.Do(opVerify, func() (any, error) {
		m.mu.Lock()
		if m.verifyDone {
			s := m.snapshotLocked()
			m.mu.Unlock()
			return s, nil
		}
		m.verifyDone = true

		if m.state.Token == "" {
			m.state = domainauth.Session{Phase: domainauth.PhaseUnauthenticated, Checked: true}
			m.publishLocked()
			s := m.snapshotLocked()
			m.mu.Unlock()
			m.metrics.ObserveOperation(opVerify, "no_token")
			return s, nil
		}

		token, epoch := m.state.Token, m.epoch
		m.mu.Unlock()

		return m.refresh(ctx, opVerify, token, epoch)
	})
	s, _ := v.(domainauth.Session)
	return s, err
}

// Revalidate re-verifies a stale session once RevalidateInterval has elapsed since the
// last attempt, or as soon as the token's expiry hint has passed. It is a no-op for
// fresh or unauthenticated sessions and never logs out on a connectivity failure.
func (m *SessionManager) Revalidate(ctx context.Context) (domainauth.Session, error) {
	m.mu.Lock()
	if !m.state.Stale || m.state.Token == "" {
		s := m.snapshotLocked()
		m.mu.Unlock()
		return s, nil
	}
	now := m.now()
	due := now.Sub(m.lastAttempt) >= m.revalidateInterval
	if exp := m.state.ExpiresAt; !exp.IsZero() && now.After(exp) && m.lastAttempt.Before(exp) {
		due = true
	}
	if !due {
		s := m.snapshotLocked()
		m.mu.Unlock()
		return s, nil
	}
	token, epoch := m.state.Token, m.epoch
	m.mu.Unlock()

	v, err, _ := m.flight.Do(opRevalidate, func() (any, error) {
		return m.refresh(ctx, opRevalidate, token, epoch)
	})
	s, _ := v.(domainauth.Session)
	return s, err
}

// refresh fetches the profile for token and commits the outcome if the session has not
// changed since epoch.
func (m *SessionManager) refresh(ctx context.Context, op, token string, epoch uint64) (domainauth.Session, error) {
	principal, err := m.backend.FetchProfile(ctx, token)
	if err == nil {
		if vErr := principal.Validate(); vErr != nil {
			err = fmt.Errorf("%w: %w", domainauth.ErrMalformedResponse, vErr)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastAttempt = m.now()
	if epoch != m.epoch || m.state.Token != token {
		m.logger.DebugContext(ctx, "discarding profile result for a replaced session", "op", op)
		m.metrics.ObserveOperation(op, "superseded")
		return m.snapshotLocked(), nil
	}

	switch {
	case err == nil:
		if saveErr := m.store.Save(ctx, domainauth.Credentials{Token: token, Principal: principal}); saveErr != nil {
			m.logger.WarnContext(ctx, "persist refreshed principal failed", "error", saveErr)
		}
		p := principal
		m.cached = &p
		m.state = domainauth.Session{
			Token:      token,
			Principal:  &p,
			Phase:      domainauth.PhaseAuthenticated,
			Checked:    true,
			VerifiedAt: m.now(),
			ExpiresAt:  tokenExpiry(token),
		}
		m.publishLocked()
		m.metrics.ObserveOperation(op, "authenticated")
		return m.snapshotLocked(), nil

	case isInvalidCredential(err):
		m.logger.InfoContext(ctx, "stored credential rejected; clearing session", "op", op, "error", err)
		m.clearLocked(ctx)
		m.metrics.ObserveOperation(op, "invalid_credential")
		return m.snapshotLocked(), apperrors.Wrap(err, apperrors.ErrCodeInvalidCredential, "stored credential is no longer valid")

	default:
		m.logger.WarnContext(ctx, "session verification failed; keeping cached session", "op", op, "error", err)
		if m.cached != nil {
			p := *m.cached
			m.state.Principal = &p
			m.state.Phase = domainauth.PhaseAuthenticated
			m.state.Stale = true
		} else {
			m.state.Principal = nil
			m.state.Phase = domainauth.PhaseUnauthenticated
			m.state.Token = ""
		}
		m.state.Checked = true
		m.publishLocked()
		m.metrics.ObserveOperation(op, "transient")
		code := apperrors.ErrCodeTransient
		if ctxErr := apperrors.FromContext(err); ctxErr != nil {
			code = ctxErr.Code
		}
		return m.snapshotLocked(), apperrors.Wrap(err, code, "session verification unavailable")
	}
}

// Login exchanges an identifier and secret for a session. On failure the current session
// is left untouched and a login_rejected error describes why.
func (m *SessionManager) Login(ctx context.Context, identifier, secret string) (domainauth.Principal, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		m.metrics.ObserveOperation(opLogin, "rejected")
		return domainauth.Principal{}, &apperrors.AppError{
			Code:    apperrors.ErrCodeLoginRejected,
			Message: "email and password are required",
		}
	}

	creds, err := m.backend.ExchangeCredentials(ctx, identifier, secret)
	if err == nil {
		err = validateIssued(creds)
	}
	if err != nil {
		m.metrics.ObserveOperation(opLogin, outcomeFor(err))
		return domainauth.Principal{}, rejection(apperrors.ErrCodeLoginRejected, err)
	}

	if err := m.commit(ctx, creds); err != nil {
		m.metrics.ObserveOperation(opLogin, "store_failed")
		return domainauth.Principal{}, apperrors.Wrap(err, apperrors.ErrCodeLoginRejected, "could not save the session")
	}
	m.metrics.ObserveOperation(opLogin, "authenticated")
	m.logger.InfoContext(ctx, "login succeeded", "user_id", creds.Principal.ID, "role", creds.Principal.Role)
	return creds.Principal, nil
}

// Register creates an account and starts a session for it. Failure semantics match Login.
func (m *SessionManager) Register(ctx context.Context, reg domainauth.Registration) (domainauth.Principal, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Name = strings.TrimSpace(reg.Name)
	if err := reg.Validate(); err != nil {
		m.metrics.ObserveOperation(opRegister, "rejected")
		return domainauth.Principal{}, apperrors.Wrap(err, apperrors.ErrCodeRegistrationRejected, "registration details are incomplete")
	}

	creds, err := m.backend.RegisterAccount(ctx, reg)
	if err == nil {
		err = validateIssued(creds)
	}
	if err != nil {
		m.metrics.ObserveOperation(opRegister, outcomeFor(err))
		return domainauth.Principal{}, rejection(apperrors.ErrCodeRegistrationRejected, err)
	}

	if err := m.commit(ctx, creds); err != nil {
		m.metrics.ObserveOperation(opRegister, "store_failed")
		return domainauth.Principal{}, apperrors.Wrap(err, apperrors.ErrCodeRegistrationRejected, "could not save the session")
	}
	m.metrics.ObserveOperation(opRegister, "authenticated")
	m.logger.InfoContext(ctx, "registration succeeded", "user_id", creds.Principal.ID, "role", creds.Principal.Role)
	return creds.Principal, nil
}

// commit persists creds and makes them the current session.
func (m *SessionManager) commit(ctx context.Context, creds domainauth.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(ctx, creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	p := creds.Principal
	m.epoch++
	m.cached = &p
	m.verifyDone = false
	m.lastAttempt = time.Time{}
	m.state = domainauth.Session{
		Token:      creds.Token,
		Principal:  &p,
		Phase:      domainauth.PhaseAuthenticated,
		Checked:    true,
		VerifiedAt: m.now(),
		ExpiresAt:  tokenExpiry(creds.Token),
	}
	m.publishLocked()
	return nil
}

// Logout revokes the current token on a best-effort basis, then clears the credential store
// and the session. It is idempotent and safe to call concurrently; concurrent calls share
// one execution. A login committed while the revocation was in flight is cleared too, and
// its token is revoked as well.
func (m *SessionManager) Logout(ctx context.Context) error {
	_, _, _ = m.flight.Do(opLogout, func() (any, error) {
		m.mu.Lock()
		token := m.state.Token
		m.loggingOut = true
		m.mu.Unlock()

		m.revoke(ctx, token)

		m.mu.Lock()
		latest := m.state.Token
		m.loggingOut = false
		m.endLocked(ctx, "user")
		m.mu.Unlock()

		if latest != token {
			m.revoke(ctx, latest)
		}
		return nil, nil
	})
	return nil
}

// ForceUnauthorized ends the session after the remote service rejected token. It is a
// no-op when token is no longer the current credential or a user logout is already
// ending the session. It reports whether this call ended an authenticated session.
func (m *SessionManager) ForceUnauthorized(ctx context.Context, token string) bool {
	m.metrics.ObserveUnauthorized()

	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" || m.state.Token != token || m.loggingOut {
		return false
	}
	return m.endLocked(ctx, "unauthorized")
}

func (m *SessionManager) revoke(ctx context.Context, token string) {
	if token == "" {
		return
	}
	BestEffort(ctx, BestEffortCall{
		Name:    "revoke session",
		Timeout: m.revokeTimeout,
		Logger:  m.logger,
		Fn: func(ctx context.Context) error {
			return m.backend.RevokeSession(ctx, token)
		},
	})
}

// endLocked clears the session and reports whether an authenticated one was ended.
func (m *SessionManager) endLocked(ctx context.Context, trigger string) bool {
	ended := m.state.Token != "" || m.state.Principal != nil
	m.clearLocked(ctx)
	if ended {
		m.logger.InfoContext(ctx, "session ended", "trigger", trigger)
		m.metrics.ObserveOperation(opLogout, trigger)
	}
	return ended
}

// clearLocked empties the credential store and resets the session to Unauthenticated.
// A store failure is logged; the in-memory session is cleared regardless.
func (m *SessionManager) clearLocked(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.ErrorContext(ctx, "clear credential store failed", "error", err)
	}
	m.epoch++
	m.cached = nil
	m.verifyDone = true
	m.state = domainauth.Session{Phase: domainauth.PhaseUnauthenticated, Checked: true}
	m.publishLocked()
}

func (m *SessionManager) snapshotLocked() domainauth.Session {
	s := m.state
	if s.Principal != nil {
		p := *s.Principal
		s.Principal = &p
	}
	return s
}

func (m *SessionManager) publishLocked() {
	s := m.snapshotLocked()
	m.metrics.ObservePhase(s.Phase)
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

func validateIssued(creds domainauth.Credentials) error {
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domainauth.ErrMalformedResponse, err)
	}
	return nil
}

func isInvalidCredential(err error) bool {
	return errors.Is(err, domainauth.ErrUnauthorized) ||
		errors.Is(err, domainauth.ErrMalformedResponse) ||
		errors.Is(err, domainauth.ErrMalformedPrincipal)
}

// rejection builds the caller-facing error for a failed login or registration.
func rejection(code apperrors.ErrorCode, err error) *apperrors.AppError {
	var msg string
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "the authentication service did not answer in time"
	case errors.Is(err, context.Canceled):
		msg = "the request was canceled"
	case errors.Is(err, domainauth.ErrUnauthorized):
		msg = "invalid email or password"
	case errors.Is(err, domainauth.ErrRejected):
		msg = "the request was refused"
	case errors.Is(err, domainauth.ErrMalformedResponse):
		msg = "unexpected response from the authentication service"
	case errors.Is(err, domainauth.ErrTransient):
		msg = "the authentication service is unreachable"
	default:
		msg = "authentication failed"
	}
	if code == apperrors.ErrCodeRegistrationRejected && errors.Is(err, domainauth.ErrUnauthorized) {
		msg = "registration was not accepted"
	}
	return apperrors.Wrap(err, code, msg)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domainauth.ErrUnauthorized), errors.Is(err, domainauth.ErrRejected):
		return "rejected"
	case errors.Is(err, domainauth.ErrMalformedResponse):
		return "malformed"
	default:
		return "transient"
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string)   {}
func (noopMetrics) ObservePhase(domainauth.Phase)     {}
func (noopMetrics) ObserveUnauthorized()              {}
