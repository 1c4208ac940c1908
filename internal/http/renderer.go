package httpx

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	corefuncs "github.com/agrimarket/agrimarket-ui/internal/http/templates/core"
)

// PageRenderer writes a full HTML page.
type PageRenderer interface {
	Render(w http.ResponseWriter, r *http.Request, status int, data PageData) error
}

// TemplateRenderer renders the shell's HTML templates.
type TemplateRenderer struct {
	fsys    fs.FS
	devMode bool
	logger  *slog.Logger

	mu sync.Mutex
	t  *template.Template
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS        // Filesystem containing layout.tmpl and pages/ (required)
	DevMode    bool         // Re-parse templates on every render
	Logger     *slog.Logger // Logger for template errors (optional)
}

// NewTemplateRenderer parses the templates in cfg.TemplateFS.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	r := &TemplateRenderer{fsys: cfg.TemplateFS, devMode: cfg.DevMode, logger: cfg.Logger}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	t, err := r.parse()
	if err != nil {
		r.logger.Error("template parsing failed", slog.Any("error", err), slog.String("phase", "initialization"))
		return nil, err
	}
	r.t = t
	return r, nil
}

func (r *TemplateRenderer) parse() (*template.Template, error) {
	var t *template.Template
	funcs := corefuncs.Funcs(corefuncs.Deps{Template: &t, ContentTemplateFor: ContentTemplateFor})
	parsed, err := template.New("root").Funcs(funcs).ParseFS(r.fsys, "*.tmpl", "pages/*.tmpl")
	if err != nil {
		return nil, err
	}
	t = parsed
	return t, nil
}

func (r *TemplateRenderer) current() (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.devMode {
		t, err := r.parse()
		if err != nil {
			return nil, err
		}
		r.t = t
	}
	return r.t, nil
}

// Render executes the layout for data.Page and writes it with status.
// Output is buffered so a template error never produces a half-written page.
func (r *TemplateRenderer) Render(w http.ResponseWriter, _ *http.Request, status int, data PageData) error {
	t, err := r.current()
	if err != nil {
		r.logger.Error("template reload failed", slog.Any("error", err))
		return err
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template execution failed",
			slog.String("page", data.Page()),
			slog.Any("error", err),
		)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Debug("failed to write rendered page", slog.Any("error", err))
		return err
	}
	return nil
}

// plainRenderer is used when no templates are configured. It writes the page title and message.
type plainRenderer struct{}

func (plainRenderer) Render(w http.ResponseWriter, _ *http.Request, status int, data PageData) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	msg := data.Title()
	if m, ok := data["ErrorMessage"].(string); ok && m != "" {
		msg += ": " + m
	}
	_, err := w.Write([]byte(msg + "\n"))
	return err
}

// renderPage renders data and falls back to a bare status response if rendering fails.
func renderPage(pages PageRenderer, w http.ResponseWriter, r *http.Request, status int, data PageData) {
	if pages == nil {
		pages = plainRenderer{}
	}
	if err := pages.Render(w, r, status, data); err != nil {
		http.Error(w, http.StatusText(status), status)
	}
}
