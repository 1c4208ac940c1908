package apiclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

const defaultRedirectDebounce = 2 * time.Second

// SessionTerminator ends a session whose credential the server rejected.
type SessionTerminator interface {
	ForceUnauthorized(ctx context.Context, token string) bool
}

// UnauthorizedChannelOptions groups dependencies for UnauthorizedChannel.
type UnauthorizedChannelOptions struct {
	Sessions  SessionTerminator
	Navigator ports.Navigator
	Debounce  time.Duration
	Now       func() time.Time
	Logger    *slog.Logger
}

// UnauthorizedChannel turns "the server rejected our credential" into a logout and a single
// navigation to the auth screen, no matter how many in-flight requests report it.
type UnauthorizedChannel struct {
	sessions  SessionTerminator
	navigator ports.Navigator
	debounce  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	flight singleflight.Group

	mu           sync.Mutex
	lastRedirect time.Time
}

// NewUnauthorizedChannel constructs an UnauthorizedChannel. Sessions and Navigator are required.
func NewUnauthorizedChannel(opts UnauthorizedChannelOptions) *UnauthorizedChannel {
	if opts.Sessions == nil {
		panic("apiclient: Sessions is required")
	}
	if opts.Navigator == nil {
		panic("apiclient: Navigator is required")
	}
	c := &UnauthorizedChannel{
		sessions:  opts.Sessions,
		navigator: opts.Navigator,
		debounce:  opts.Debounce,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if c.debounce <= 0 {
		c.debounce = defaultRedirectDebounce
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Signal reports that the server rejected token. It ends the session and navigates to the
// auth screen, at most once per debounce window and only if this signal ended a session.
// It reports whether a navigation was requested.
func (c *UnauthorizedChannel) Signal(ctx context.Context, token string) bool {
	v, _, _ := c.flight.Do(token, func() (any, error) {
		if !c.sessions.ForceUnauthorized(ctx, token) {
			return false, nil
		}

		c.mu.Lock()
		now := c.now()
		due := c.lastRedirect.IsZero() || now.Sub(c.lastRedirect) >= c.debounce
		if due {
			c.lastRedirect = now
		}
		c.mu.Unlock()

		if !due {
			c.logger.DebugContext(ctx, "suppressing repeated auth redirect")
			return false, nil
		}
		c.logger.InfoContext(ctx, "credential rejected by server; redirecting to sign in")
		c.navigator.Navigate(ctx, domainauth.AuthPath)
		return true, nil
	})
	navigated, _ := v.(bool)
	return navigated
}
