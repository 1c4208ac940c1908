package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/agrimarket/agrimarket-ui/config"
	"github.com/agrimarket/agrimarket-ui/internal/apiclient"
	"github.com/agrimarket/agrimarket-ui/internal/cache"
	"github.com/agrimarket/agrimarket-ui/internal/observability/metrics"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
	"github.com/agrimarket/agrimarket-ui/internal/service"
)

// AppDeps contains dependencies for NewApp.
type AppDeps struct {
	Config *config.AppConfig
	// Navigator receives the auth screen redirect when the API rejects the credential.
	Navigator ports.Navigator
	Logger    *slog.Logger

	// Backend and Store override the configured adapters when set.
	Backend ports.AuthBackend
	Store   ports.CredentialStore
	Now     func() time.Time
}

// App is the wired client: session manager, authenticated API client and metrics.
type App struct {
	Sessions     *service.SessionManager
	Unauthorized *apiclient.UnauthorizedChannel
	// API and Figures are nil when no marketplace API URL is configured.
	API      *apiclient.Client
	Figures  *cache.SummaryCache
	Metrics  *metrics.Recorder
	Registry *prometheus.Registry

	closers []func() error
}

// NewApp builds the session manager and its collaborators from configuration.
func NewApp(ctx context.Context, deps AppDeps) (*App, error) {
	if deps.Config == nil {
		return nil, errors.New("app config is required")
	}
	if deps.Navigator == nil {
		return nil, errors.New("navigator is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(collectors.NewGoCollector())

	recorder, err := metrics.NewRecorder(app.Registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	app.Metrics = recorder

	backend := deps.Backend
	if backend == nil {
		backend, err = BuildAuthBackend(ctx, AuthBackendConfig{Auth: cfg.Auth, IsDev: cfg.IsDev, Logger: logger})
		if err != nil {
			return nil, err
		}
	}

	store := deps.Store
	if store == nil {
		var closeStore func() error
		store, closeStore, err = BuildCredentialStore(ctx, CredentialStoreConfig{Store: cfg.Store, Logger: logger})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, closeStore)
	}

	sessions, err := service.NewSessionManager(ctx, service.SessionManagerOptions{
		Backend:            backend,
		Store:              store,
		Metrics:            recorder,
		Logger:             logger,
		Now:                deps.Now,
		RevalidateInterval: cfg.Session.RevalidateInterval,
		RevokeTimeout:      cfg.Session.RevokeTimeout,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create session manager: %w", err), app.Close())
	}
	app.Sessions = sessions

	app.Unauthorized = apiclient.NewUnauthorizedChannel(apiclient.UnauthorizedChannelOptions{
		Sessions:  sessions,
		Navigator: deps.Navigator,
		Debounce:  cfg.Session.RedirectDebounce,
		Now:       deps.Now,
		Logger:    logger,
	})

	if baseURL := apiBaseURL(cfg); baseURL != "" {
		api, apiErr := apiclient.New(apiclient.Options{
			BaseURL:      baseURL,
			Sessions:     sessions,
			Unauthorized: app.Unauthorized,
			Timeout:      cfg.HTTP.APITimeout,
			Metrics:      recorder,
			Logger:       logger,
		})
		if apiErr != nil {
			return nil, errors.Join(fmt.Errorf("create API client: %w", apiErr), app.Close())
		}
		app.API = api
		app.Figures = cache.NewSummaryCache(cache.SummaryCacheConfig{TTL: cfg.Session.SummaryCacheTTL, Now: deps.Now})
		app.closers = append(app.closers, purgeOnSignOut(sessions, app.Figures))
	} else {
		logger.Info("marketplace API URL not configured; dashboards show no live figures")
	}

	return app, nil
}

// Close releases connections held by the credential store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// purgeOnSignOut drops every cached figure whenever the session stops being authenticated.
// The returned func stops the watcher.
func purgeOnSignOut(sessions *service.SessionManager, figures *cache.SummaryCache) func() error {
	updates, unsubscribe := sessions.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range updates {
			if !s.IsAuthenticated() {
				figures.Purge()
			}
		}
	}()
	return func() error {
		unsubscribe()
		<-done
		return nil
	}
}

// apiBaseURL prefers MARKETPLACE_API_URL and falls back to the auth API in api mode.
func apiBaseURL(cfg *config.AppConfig) string {
	if cfg.HTTP.APIBaseURL != "" {
		return cfg.HTTP.APIBaseURL
	}
	if cfg.Auth.Mode == config.AuthModeAPI {
		return cfg.Auth.API.BaseURL
	}
	return ""
}
