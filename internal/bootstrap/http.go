package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	agrimarket "github.com/agrimarket/agrimarket-ui"
	"github.com/agrimarket/agrimarket-ui/config"
	"github.com/agrimarket/agrimarket-ui/internal/observability/metrics"
	httpx "github.com/agrimarket/agrimarket-ui/internal/http"
)

// ShellConfig contains configuration for the local web shell.
type ShellConfig struct {
	Config     *config.AppConfig
	App        *App
	Navigation *httpx.PendingNavigation
	Logger     *slog.Logger
	// Listener overrides HTTP_ADDR when set.
	Listener net.Listener
}

// BuildShellHandler wires the router, templates and metrics endpoint for the shell.
func BuildShellHandler(cfg ShellConfig) (http.Handler, error) {
	if cfg.Config == nil || cfg.App == nil {
		return nil, errors.New("shell config and app are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templates, err := templateFS(cfg.Config.IsDev)
	if err != nil {
		return nil, err
	}
	renderer, err := httpx.NewTemplateRenderer(httpx.TemplateRendererConfig{
		TemplateFS: templates,
		DevMode:    cfg.Config.IsDev,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	services := httpx.RouterServices{
		Sessions:   cfg.App.Sessions,
		Navigation: cfg.Navigation,
		Renderer:   renderer,
		Logger:     logger,
	}
	if cfg.App.API != nil {
		services.Summaries = cfg.App.API
	}
	if cfg.App.Figures != nil {
		services.Cache = cfg.App.Figures
	}
	if cfg.Config.Observability.MetricsEnabled {
		services.MetricsHandler = metrics.Handler(cfg.App.Registry)
		services.MetricsPath = cfg.Config.Observability.MetricsPath
	}

	return httpx.NewRouter(services), nil
}

// templateFS reads templates from disk in dev mode so edits show up without a rebuild.
func templateFS(isDev bool) (fs.FS, error) {
	if isDev {
		if _, err := os.Stat(httpx.TemplatePathFromRoot); err == nil {
			return os.DirFS(httpx.TemplatePathFromRoot), nil
		}
	}
	sub, err := fs.Sub(agrimarket.TemplateFS, httpx.TemplatePathFromRoot)
	if err != nil {
		return nil, fmt.Errorf("open embedded templates: %w", err)
	}
	return sub, nil
}

// RunShell serves the shell until ctx is cancelled. Startup verification runs in the
// background so the first pages render the pending state instead of blocking.
func RunShell(ctx context.Context, cfg ShellConfig) error {
	handler, err := BuildShellHandler(cfg)
	if err != nil {
		return err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := newServer(handler, cfg.Config.HTTP.Addr)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", listenAddr(cfg.Listener, server.Addr))
		var serveErr error
		if cfg.Listener != nil {
			serveErr = server.Serve(cfg.Listener)
		} else {
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", serveErr)
		}
		return nil
	})

	g.Go(func() error {
		s, verifyErr := cfg.App.Sessions.Verify(gctx)
		if verifyErr != nil {
			logger.Warn("startup session verification failed", "error", verifyErr, "phase", s.Phase.String())
			return nil
		}
		logger.Info("session verified", "phase", s.Phase.String())
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(ShutdownConfig{
			Server:  server,
			Timeout: cfg.Config.HTTP.ShutdownTimeout,
			Logger:  logger,
		})
	})

	return g.Wait()
}

func newServer(handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on every interface
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func listenAddr(l net.Listener, fallback string) string {
	if l != nil {
		return l.Addr().String()
	}
	return fallback
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
