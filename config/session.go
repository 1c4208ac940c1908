package config

import "time"

const (
	defaultRevalidateInterval = 30 * time.Second
	defaultRedirectDebounce   = 2 * time.Second
	defaultRevokeTimeout      = 3 * time.Second
	defaultSummaryCacheTTL    = 15 * time.Minute
)

// SessionConfig controls session verification and sign-out timing.
type SessionConfig struct {
	// RevalidateInterval is how long a verified session is trusted before the next
	// profile check is due.
	RevalidateInterval time.Duration `env:"SESSION_REVALIDATE_INTERVAL" envDefault:"30s"`

	// RedirectDebounce suppresses repeated auth-screen redirects from concurrent 401s.
	RedirectDebounce time.Duration `env:"SESSION_REDIRECT_DEBOUNCE" envDefault:"2s"`

	// RevokeTimeout bounds the best-effort server-side revocation on logout.
	RevokeTimeout time.Duration `env:"SESSION_REVOKE_TIMEOUT" envDefault:"3s"`

	// SummaryCacheTTL is how long last-known dashboard figures may be shown while the
	// marketplace API is unreachable.
	SummaryCacheTTL time.Duration `env:"SUMMARY_CACHE_TTL" envDefault:"15m"`
}

// Sanitize replaces non-positive durations with defaults.
func (c *SessionConfig) Sanitize() {
	if c.RevalidateInterval <= 0 {
		c.RevalidateInterval = defaultRevalidateInterval
	}
	if c.RedirectDebounce <= 0 {
		c.RedirectDebounce = defaultRedirectDebounce
	}
	if c.RevokeTimeout <= 0 {
		c.RevokeTimeout = defaultRevokeTimeout
	}
	if c.SummaryCacheTTL <= 0 {
		c.SummaryCacheTTL = defaultSummaryCacheTTL
	}
}
