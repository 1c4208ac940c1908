package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	"github.com/agrimarket/agrimarket-ui/internal/domain/authz"
)

// SessionSource exposes the current session snapshot.
type SessionSource interface {
	Session() domainauth.Session
}

// Gate renders the four authorization outcomes for protected routes.
type Gate struct {
	Sessions SessionSource
	Pages    PageRenderer
	Logger   *slog.Logger
}

// RequireRoles protects a handler with req using plain-text pages.
// Routers with templates use Gate.RequireRoles.
func RequireRoles(sessions SessionSource, req authz.Requirement) func(http.Handler) http.Handler {
	return Gate{Sessions: sessions}.RequireRoles(req)
}

// RequireRoles returns a middleware that admits the request only when the session
// satisfies req:
//   - verification pending: a neutral loading page that refreshes itself (202 for API callers);
//   - nobody signed in: 303 to /auth with the requested location preserved (401 for API callers);
//   - wrong role: 403 naming both roles with a link to the user's own dashboard;
//   - otherwise the principal is put in the request context.
func (g Gate) RequireRoles(req authz.Requirement) func(http.Handler) http.Handler {
	if g.Sessions == nil {
		panic("httpx: Gate requires a SessionSource")
	}
	if g.Logger == nil {
		g.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := g.Sessions.Session()
			d := authz.Authorize(req, sess, authz.WithReturnTo(redirectPathForRequest(r)))

			switch d.Outcome {
			case authz.Pending:
				g.pending(w, r)
			case authz.Redirect:
				g.redirect(w, r, d)
			case authz.Deny:
				r = r.WithContext(WithPrincipal(r.Context(), sess.Principal))
				g.deny(w, r, req, d)
			default:
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), sess.Principal)))
			}
		})
	}
}

func (g Gate) pending(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if wantsJSON(r) {
		w.Header().Set("Retry-After", "1")
		WriteJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}
	if IsHTMX(r) {
		SetHXTrigger(w, "session-pending", nil)
	}
	w.Header().Set("Refresh", "1")
	data := NewTemplateData(r, PageMeta{Title: "Loading", Page: PagePending}).Build()
	renderPage(g.Pages, w, r, http.StatusOK, data)
}

func (g Gate) redirect(w http.ResponseWriter, r *http.Request, d authz.Decision) {
	target := d.RedirectURL()
	if wantsJSON(r) {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
			Extra:   map[string]any{"redirect_to": target},
		})
		return
	}
	navigate(w, r, target)
}

func (g Gate) deny(w http.ResponseWriter, r *http.Request, req authz.Requirement, d authz.Decision) {
	g.Logger.InfoContext(r.Context(), "role mismatch",
		"path", r.URL.Path, "role", d.CurrentRole, "required", req.String())

	if wantsJSON(r) {
		WriteError(w, ErrorParams{
			Code:    http.StatusForbidden,
			ErrCode: "role_mismatch",
			Err:     fmt.Errorf("this resource requires %s; signed in as %s", req, d.CurrentRole),
			Extra: map[string]any{
				"current_role":    d.CurrentRole,
				"required_roles":  d.RequiredRoles,
				"corrective_path": d.CorrectivePath,
			},
		})
		return
	}

	data := NewTemplateData(r, PageMeta{Title: "Not available", Page: PageDenied}).
		With("CurrentRole", d.CurrentRole).
		With("RequiredRoles", d.RequiredRoles).
		With("CorrectivePath", d.CorrectivePath).
		With("RequestedPath", authz.SafeReturnPath(r.URL.RequestURI())).
		Build()
	renderPage(g.Pages, w, r, http.StatusForbidden, data)
}
