package config

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// HTTPConfig contains local shell and marketplace API configuration.
type HTTPConfig struct {
	// Addr is the address to bind the local shell to.
	Addr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080"`

	// APIBaseURL is the marketplace API that dashboards load their figures from.
	// Empty falls back to AUTH_API_BASE_URL.
	APIBaseURL string `env:"MARKETPLACE_API_URL"`

	// APITimeout bounds each marketplace API request.
	APITimeout time.Duration `env:"MARKETPLACE_API_TIMEOUT" envDefault:"15s"`

	// ShutdownTimeout bounds graceful shutdown of the local shell.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.Addr = strings.TrimSpace(h.Addr)
	if h.Addr == "" {
		h.Addr = "127.0.0.1:8080"
	}
	h.APIBaseURL = strings.TrimSuffix(strings.TrimSpace(h.APIBaseURL), "/")
	if h.APITimeout <= 0 {
		h.APITimeout = 15 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

// Validate checks the API base URL when one is set.
func (h *HTTPConfig) Validate() error {
	if h.APIBaseURL == "" {
		return nil
	}
	u, err := url.Parse(h.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("MARKETPLACE_API_URL must be an absolute URL")
	}
	return nil
}
