package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agrimarket/agrimarket-ui/internal/cache"
	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/domain/authz"
)

// SummaryFetcher loads a JSON document from the marketplace API.
type SummaryFetcher interface {
	GetJSON(ctx context.Context, path string, dst any) error
}

// SummaryCache keeps the last figures each user saw.
type SummaryCache interface {
	Put(userID, path string, values map[string]any)
	Get(userID, path string) (cache.Summary, bool)
}

// DashboardHandlers renders the gated pages.
type DashboardHandlers struct {
	Sessions  SessionSource
	Summaries SummaryFetcher
	// Optional: last-known figures shown while the API is unreachable.
	Cache  SummaryCache
	Pages  PageRenderer
	Logger *slog.Logger
}

// Home sends the principal to their own dashboard.
// GET /dashboard.
func (h *DashboardHandlers) Home(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	navigate(w, r, domainauth.DashboardForPrincipal(p))
}

// Page renders rt for an admitted principal, with the API summary when one is configured.
func (h *DashboardHandlers) Page(rt ProtectedRoute) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := h.Sessions.Session()
		b := NewTemplateData(r, PageMeta{Title: rt.Title, Page: PageDashboard}).
			With("Heading", rt.Title).
			With("Stale", sess.Stale)
		if !sess.ExpiresAt.IsZero() {
			b.With("ExpiresAt", sess.ExpiresAt)
		}

		if h.Summaries != nil && rt.SummaryPath != "" {
			summary := map[string]any{}
			err := h.Summaries.GetJSON(r.Context(), rt.SummaryPath, &summary)
			switch {
			case err == nil:
				b.With("Summary", summary)
				h.remember(r, rt.SummaryPath, summary)
			case domainauth.IsUnauthorized(err), errors.Is(err, domainauth.ErrNoCredentials):
				// The session ended while the page was loading.
				d := authz.Decision{Target: domainauth.AuthPath, ReturnTo: authz.SafeReturnPath(r.URL.RequestURI())}
				if wantsJSON(r) {
					WriteError(w, ErrorParams{
						Code:    http.StatusUnauthorized,
						ErrCode: "authentication_required",
						Err:     err,
						Extra:   map[string]any{"redirect_to": d.RedirectURL()},
					})
					return
				}
				navigate(w, r, d.RedirectURL())
				return
			default:
				h.logger().WarnContext(r.Context(), "dashboard summary unavailable", "path", rt.SummaryPath, "error", err)
				b.With("SummaryError", "Live figures are unavailable right now.")
				if last, ok := h.recall(r, rt.SummaryPath); ok {
					b.With("Summary", last.Values).With("SummaryAsOf", last.FetchedAt)
				}
			}
		}

		data := b.Build()
		if wantsJSON(r) {
			WriteJSON(w, http.StatusOK, map[string]any{
				"page":      rt.Path,
				"title":     rt.Title,
				"principal": data["Principal"],
				"summary":   data["Summary"],
				"as_of":     data["SummaryAsOf"],
				"stale":     sess.Stale,
			})
			return
		}
		renderPage(h.Pages, w, r, http.StatusOK, data)
	})
}

func (h *DashboardHandlers) remember(r *http.Request, path string, summary map[string]any) {
	if h.Cache == nil {
		return
	}
	if p, ok := PrincipalFromContext(r.Context()); ok {
		h.Cache.Put(p.ID, path, summary)
	}
}

func (h *DashboardHandlers) recall(r *http.Request, path string) (cache.Summary, bool) {
	if h.Cache == nil {
		return cache.Summary{}, false
	}
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		return cache.Summary{}, false
	}
	return h.Cache.Get(p.ID, path)
}

func (h *DashboardHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
